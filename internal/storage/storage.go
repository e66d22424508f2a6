// /internal/storage/storage.go
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"soundbot/internal/datastore"
)

const playHistoryLimit = 50

// Storage persists per-guild soundboard state. Voice session state is
// deliberately not stored; only the play history survives a restart.
type Storage struct {
	ds *datastore.DataStore
}

// PlayHistoryRecord is one played sound.
type PlayHistoryRecord struct {
	Sound     string    `json:"sound"`
	Fragment  string    `json:"fragment"`
	Requester string    `json:"requester"`
	Source    string    `json:"source"` // "chat" or "console"
	Datetime  time.Time `json:"datetime"`
}

type Record struct {
	PlayHistoryList []PlayHistoryRecord `json:"play_history"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// Helper function to get or create a Record for a guild
func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	data, exists := s.ds.Get(guildID)
	if !exists {
		return &Record{}, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}

	var record Record
	if err := json.Unmarshal(jsonData, &record); err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}

	if len(record.PlayHistoryList) > playHistoryLimit {
		record.PlayHistoryList = record.PlayHistoryList[len(record.PlayHistoryList)-playHistoryLimit:]
	}

	return &record, nil
}

// AppendPlayToHistory appends one play record for a guild.
func (s *Storage) AppendPlayToHistory(guildID string, play PlayHistoryRecord) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.PlayHistoryList = append(record.PlayHistoryList, play)
	s.ds.Add(guildID, record)
	return nil
}

// FetchPlayHistory returns the recorded plays for a guild, oldest first.
func (s *Storage) FetchPlayHistory(guildID string) ([]PlayHistoryRecord, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.PlayHistoryList, nil
}
