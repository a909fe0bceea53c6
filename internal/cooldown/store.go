package cooldown

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store persists throttle state across process restarts.
type Store interface {
	Load() (map[string]*symbolState, error)
	Save(states map[string]*symbolState) error
}

// fileDocument is the on-disk JSON layout: three top-level maps keyed by
// symbol, timestamps in ISO-8601.
type fileDocument struct {
	LastTradeTime      map[string]string   `json:"last_trade_time"`
	SellHistory        map[string][]string `json:"sell_history"`
	LastSellConfidence map[string]float64  `json:"last_sell_confidence"`
}

// FileStore persists cooldown state as a single JSON document.
type FileStore struct {
	Path string
}

// NewFileStore creates a JSON file store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the JSON document. A missing file yields nil state, no error.
func (f *FileStore) Load() (map[string]*symbolState, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cooldown state: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode cooldown state: %w", err)
	}

	states := make(map[string]*symbolState)
	at := func(symbol string) *symbolState {
		st := states[symbol]
		if st == nil {
			st = &symbolState{}
			states[symbol] = st
		}
		return st
	}

	for symbol, raw := range doc.LastTradeTime {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("decode last_trade_time[%s]: %w", symbol, err)
		}
		at(symbol).lastTrade = ts
	}
	for symbol, raws := range doc.SellHistory {
		st := at(symbol)
		for _, raw := range raws {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, fmt.Errorf("decode sell_history[%s]: %w", symbol, err)
			}
			st.sellHistory = append(st.sellHistory, ts)
		}
	}
	for symbol, conf := range doc.LastSellConfidence {
		st := at(symbol)
		st.lastSellConfidence = conf
		st.hasSellConfidence = true
	}
	return states, nil
}

// Save writes the JSON document atomically (temp file + rename).
func (f *FileStore) Save(states map[string]*symbolState) error {
	doc := fileDocument{
		LastTradeTime:      make(map[string]string),
		SellHistory:        make(map[string][]string),
		LastSellConfidence: make(map[string]float64),
	}
	for symbol, st := range states {
		if !st.lastTrade.IsZero() {
			doc.LastTradeTime[symbol] = st.lastTrade.Format(time.RFC3339)
		}
		for _, ts := range st.sellHistory {
			doc.SellHistory[symbol] = append(doc.SellHistory[symbol], ts.Format(time.RFC3339))
		}
		if st.hasSellConfidence {
			doc.LastSellConfidence[symbol] = st.lastSellConfidence
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cooldown state: %w", err)
	}

	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cooldown state dir: %w", err)
		}
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cooldown state: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("replace cooldown state: %w", err)
	}
	return nil
}
