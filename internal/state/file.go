package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"RateKeeper/internal/ratemodel"
	"RateKeeper/internal/upkeep"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// File is the on-disk layout. Ray values are decimal strings so the file
// stays readable and exact.
type File struct {
	RateModel RateModelFile `json:"rate_model"`
	Upkeep    UpkeepFile    `json:"upkeep"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type RateModelFile struct {
	VariableRateSlope1 string   `json:"variable_rate_slope1"`
	MPlus              uint64   `json:"m_plus"`
	MMinus             uint64   `json:"m_minus"`
	Wards              []string `json:"wards"`
	ActiveUpdater      string   `json:"active_updater"`
}

type UpkeepFile struct {
	History        []string  `json:"history"`
	Counter        uint64    `json:"counter"`
	LastCommitTime time.Time `json:"last_commit_time"`
}

// LoadFile reads the state file. It returns nil, nil if the file doesn't exist.
func LoadFile(filePath string) (*File, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filePath, err)
	}
	return &f, nil
}

// SaveFile writes the state file through a temporary file and rename.
func SaveFile(filePath string, f *File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}

// Encode converts live state into its file form.
func Encode(rates ratemodel.State, up upkeep.State, now time.Time) *File {
	wards := make([]string, len(rates.Wards))
	for i, w := range rates.Wards {
		wards[i] = w.Hex()
	}
	history := make([]string, len(up.History))
	for i, h := range up.History {
		history[i] = h.Dec()
	}
	return &File{
		RateModel: RateModelFile{
			VariableRateSlope1: rates.VariableRateSlope1.Dec(),
			MPlus:              rates.MPlus,
			MMinus:             rates.MMinus,
			Wards:              wards,
			ActiveUpdater:      rates.ActiveUpdater.Hex(),
		},
		Upkeep: UpkeepFile{
			History:        history,
			Counter:        up.Counter,
			LastCommitTime: up.LastCommitTime,
		},
		UpdatedAt: now,
	}
}

// Decode parses the file form back into live state.
func (f *File) Decode() (ratemodel.State, upkeep.State, error) {
	slope, err := uint256.FromDecimal(f.RateModel.VariableRateSlope1)
	if err != nil {
		return ratemodel.State{}, upkeep.State{}, fmt.Errorf("variable_rate_slope1: %w", err)
	}
	wards := make([]common.Address, 0, len(f.RateModel.Wards))
	for _, w := range f.RateModel.Wards {
		if !common.IsHexAddress(w) {
			return ratemodel.State{}, upkeep.State{}, fmt.Errorf("ward %q is not an address", w)
		}
		wards = append(wards, common.HexToAddress(w))
	}
	if f.RateModel.ActiveUpdater != "" && !common.IsHexAddress(f.RateModel.ActiveUpdater) {
		return ratemodel.State{}, upkeep.State{}, fmt.Errorf("active_updater %q is not an address", f.RateModel.ActiveUpdater)
	}
	history := make([]*uint256.Int, len(f.Upkeep.History))
	for i, h := range f.Upkeep.History {
		v, err := uint256.FromDecimal(h)
		if err != nil {
			return ratemodel.State{}, upkeep.State{}, fmt.Errorf("history[%d]: %w", i, err)
		}
		history[i] = v
	}
	return ratemodel.State{
			VariableRateSlope1: slope,
			MPlus:              f.RateModel.MPlus,
			MMinus:             f.RateModel.MMinus,
			Wards:              wards,
			ActiveUpdater:      common.HexToAddress(f.RateModel.ActiveUpdater),
		}, upkeep.State{
			History:        history,
			Counter:        f.Upkeep.Counter,
			LastCommitTime: f.Upkeep.LastCommitTime,
		}, nil
}
