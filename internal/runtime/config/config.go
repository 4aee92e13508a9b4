package config

import (
	"fmt"
	"strings"
)

// Options groups the persisted settings consumed by the bridge. The whole
// object is read and applied wholesale on every change notification; fields
// are never diffed individually.
type Options struct {
	// Console enables debug logging when true.
	Console bool `json:"console"`

	// DownloadDir is the base directory prefixed onto every requested
	// download filename.
	DownloadDir string `json:"downloadDir"`

	// Printer configuration.
	Printer PrinterOptions `json:"printer"`

	// POS payment terminal configuration.
	POS POSOptions `json:"pos"`
}

// PrinterOptions selects the default print target.
type PrinterOptions struct {
	Activate bool   `json:"activate"`
	Default  string `json:"default"`
}

// POSOptions describes the payment terminal the native host should talk to.
type POSOptions struct {
	Activate bool   `json:"activate"`
	Device   string `json:"device"`
	Port     string `json:"port"`
	Protocol string `json:"protocol"`
	EthIP    string `json:"ethip"`
}

// Default returns the options applied when no option file exists yet.
func Default() *Options {
	return &Options{
		Console:     false,
		DownloadDir: "companion",
		Printer:     PrinterOptions{},
		POS:         POSOptions{},
	}
}

// Validate reports configuration values that cannot be applied. Missing
// printer or POS settings are not errors; the related services simply stay
// inactive.
func Validate(o *Options) error {
	if o == nil {
		return fmt.Errorf("options are required")
	}
	if strings.ContainsAny(o.DownloadDir, "\x00") {
		return fmt.Errorf("download dir contains invalid characters")
	}
	if o.POS.Activate && o.POS.Protocol == "" {
		return fmt.Errorf("pos protocol is required when pos is activated")
	}
	return nil
}

// Clone returns a deep copy so subscribers can hold a snapshot without
// racing the next reload.
func (o *Options) Clone() *Options {
	if o == nil {
		return nil
	}
	cp := *o
	return &cp
}
