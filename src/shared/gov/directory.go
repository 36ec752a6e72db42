package gov

import (
	"sync"

	"gorm.io/gorm"
)

// BandDirectory caches band announcement settings for notifiers.
type BandDirectory struct {
	db       *gorm.DB
	channels map[uint64]string
	mu       sync.RWMutex
}

// NewBandDirectory creates a directory and loads bands from DB
func NewBandDirectory(db *gorm.DB) (*BandDirectory, error) {
	d := &BandDirectory{
		db:       db,
		channels: make(map[uint64]string),
	}

	if err := d.Reload(); err != nil {
		return nil, err
	}

	return d, nil
}

// Reload refreshes the cached band settings from the database.
func (d *BandDirectory) Reload() error {
	var bands []Band
	if err := d.db.Select("id", "discord_channel_id").Find(&bands).Error; err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.channels = make(map[uint64]string, len(bands))
	for _, b := range bands {
		if b.DiscordChannelID != "" {
			d.channels[b.ID] = b.DiscordChannelID
		}
	}

	return nil
}

// DiscordChannel returns the announcement channel of a band, or "" if none.
func (d *BandDirectory) DiscordChannel(bandID uint64) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.channels[bandID]
}
