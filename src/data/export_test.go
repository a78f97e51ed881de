package data

var NormalizeDSN = normalizeDSN
