package netconfig

import (
	"encoding/json"
	"os"

	"m3logger/errcode"
)

// FileKV is a small file-backed key-value store for the critical subset. It
// lives on the device's internal storage, not the removable medium, so it
// survives a card swap. Writes go through a temp file and rename.
type FileKV struct {
	path string
	m    map[string]string
}

func NewFileKV(path string) (*FileKV, error) {
	kv := &FileKV{path: path, m: map[string]string{}}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return kv, nil
	}
	if err != nil {
		return nil, &errcode.E{C: errcode.StorageUnavail, Op: "kv_open", Err: err}
	}
	if err := json.Unmarshal(b, &kv.m); err != nil {
		// Corrupt store: start empty rather than fail the boot.
		kv.m = map[string]string{}
	}
	return kv, nil
}

func (kv *FileKV) Get(key string) (string, bool, error) {
	v, ok := kv.m[key]
	return v, ok, nil
}

func (kv *FileKV) Set(key, value string) error {
	kv.m[key] = value
	return kv.persist()
}

func (kv *FileKV) Delete(key string) error {
	delete(kv.m, key)
	return kv.persist()
}

func (kv *FileKV) persist() error {
	b, err := json.Marshal(kv.m)
	if err != nil {
		return &errcode.E{C: errcode.StorageWrite, Op: "kv_persist", Err: err}
	}
	tmp := kv.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return &errcode.E{C: errcode.StorageWrite, Op: "kv_persist", Err: err}
	}
	if err := os.Rename(tmp, kv.path); err != nil {
		return &errcode.E{C: errcode.StorageWrite, Op: "kv_persist", Err: err}
	}
	return nil
}
