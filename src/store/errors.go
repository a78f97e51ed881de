package store

import "errors"

var (
	ErrNotFound      = errors.New("store: record not found")
	ErrNotClaimed    = errors.New("store: session is not being resolved")
	ErrAlreadyVoted  = errors.New("store: voter already voted in this session")
	ErrInvalidAction = errors.New("store: unknown stats action")
)
