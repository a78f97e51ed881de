package data

import (
	"strings"
	"sync"

	"github.com/stake-plus/storyvote/src/types"
	"gorm.io/gorm"
)

// settingsSnapshot is the active rows of the settings table at the last load.
var settingsSnapshot struct {
	sync.RWMutex
	values map[string]string
}

// LoadSettings replaces the cached settings with the active rows and returns
// how many were loaded. When a name repeats the row with the highest id wins.
func LoadSettings(db *gorm.DB) (int, error) {
	var rows []types.Setting
	if err := db.Where("active = ?", 1).Order("id").Find(&rows).Error; err != nil {
		return 0, err
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[strings.TrimSpace(row.Name)] = strings.TrimSpace(row.Value)
	}

	settingsSnapshot.Lock()
	settingsSnapshot.values = values
	settingsSnapshot.Unlock()
	return len(values), nil
}

// LookupSetting reports the cached value of name and whether it is set.
func LookupSetting(name string) (string, bool) {
	settingsSnapshot.RLock()
	defer settingsSnapshot.RUnlock()
	v, ok := settingsSnapshot.values[name]
	return v, ok && v != ""
}

// GetSetting returns the cached value of name or "".
func GetSetting(name string) string {
	v, _ := LookupSetting(name)
	return v
}
