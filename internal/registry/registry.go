// Package registry persists the devices that have paired with this host
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/buntdb"
)

const (
	keyPrefix = "device:"
	// lastSeenIndex orders devices by their last activity
	lastSeenIndex = "last_seen"
)

// ErrUnknownDevice is returned for a device that never paired
var ErrUnknownDevice = errors.New("registry: unknown device")

// Device is one paired input device
type Device struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
	// KeyID is the host keyId the device last paired against
	KeyID string `json:"keyId"`
	// ClientPublicKey is the ephemeral key from the last pairing request
	ClientPublicKey string `json:"clientPublicKey"`
	FirstPairedMs   int64  `json:"firstPairedMs"`
	LastPairedMs    int64  `json:"lastPairedMs"`
	LastSeenMs      int64  `json:"lastSeenMs"`
	Pairings        int    `json:"pairings"`
}

// LastSeen returns LastSeenMs as a time
func (d *Device) LastSeen() time.Time {
	return time.UnixMilli(d.LastSeenMs)
}

// Registry stores devices in a buntdb database
type Registry struct {
	db *buntdb.DB
}

// Open opens or creates the registry at path. ":memory:" keeps it in memory.
func Open(path string) (*Registry, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open device registry %s: %w", path, err)
	}
	if err := db.CreateIndex(lastSeenIndex, keyPrefix+"*", buntdb.IndexJSON("lastSeenMs")); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to index device registry: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close flushes and closes the database
func (r *Registry) Close() error {
	return r.db.Close()
}

// RecordPairing adds or updates the device named in a completed pairing
func (r *Registry) RecordPairing(name, addr, keyID, clientPublicKey string, at time.Time) (*Device, error) {
	ms := at.UnixMilli()
	var device Device
	err := r.db.Update(func(tx *buntdb.Tx) error {
		existing, err := get(tx, name)
		switch {
		case err == nil:
			device = *existing
		case errors.Is(err, ErrUnknownDevice):
			device = Device{Name: name, FirstPairedMs: ms}
		default:
			return err
		}

		device.Addr = addr
		device.KeyID = keyID
		device.ClientPublicKey = clientPublicKey
		device.LastPairedMs = ms
		device.LastSeenMs = ms
		device.Pairings++
		return put(tx, &device)
	})
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// Touch marks a paired device as active at the given time. Unknown devices
// are ignored, since only pairings create entries.
func (r *Registry) Touch(name string, at time.Time) error {
	return r.db.Update(func(tx *buntdb.Tx) error {
		device, err := get(tx, name)
		if errors.Is(err, ErrUnknownDevice) {
			return nil
		}
		if err != nil {
			return err
		}
		if ms := at.UnixMilli(); ms > device.LastSeenMs {
			device.LastSeenMs = ms
		}
		return put(tx, device)
	})
}

// Get returns a device by name
func (r *Registry) Get(name string) (*Device, error) {
	var device *Device
	err := r.db.View(func(tx *buntdb.Tx) error {
		var err error
		device, err = get(tx, name)
		return err
	})
	return device, err
}

// List returns all devices, most recently seen first
func (r *Registry) List() ([]*Device, error) {
	var devices []*Device
	err := r.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error
		err := tx.Descend(lastSeenIndex, func(key, value string) bool {
			var d Device
			if decodeErr = json.Unmarshal([]byte(value), &d); decodeErr != nil {
				decodeErr = fmt.Errorf("corrupt registry entry %s: %w", key, decodeErr)
				return false
			}
			devices = append(devices, &d)
			return true
		})
		if err != nil {
			return err
		}
		return decodeErr
	})
	return devices, err
}

// Forget removes a device
func (r *Registry) Forget(name string) error {
	return r.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(keyPrefix + name)
		if errors.Is(err, buntdb.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownDevice, name)
		}
		return err
	})
}

func get(tx *buntdb.Tx, name string) (*Device, error) {
	value, err := tx.Get(keyPrefix + name)
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
	if err != nil {
		return nil, err
	}
	var d Device
	if err := json.Unmarshal([]byte(value), &d); err != nil {
		return nil, fmt.Errorf("corrupt registry entry for %s: %w", name, err)
	}
	return &d, nil
}

func put(tx *buntdb.Tx, d *Device) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, _, err = tx.Set(keyPrefix+d.Name, string(data), nil)
	return err
}
