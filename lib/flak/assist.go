// Package flak holds small filesystem helpers shared by isolate's
// commands -- the kind of thing that doesn't deserve its own package but
// also shouldn't be copy-pasted in three places.
package flak

import "os"

// WithTempDir creates a fresh temp directory under parent (which must
// already exist or be creatable), calls f with its path, and always
// removes it afterward -- regardless of whether f panics.
func WithTempDir(parent string, f func(dir string)) error {
	if err := os.MkdirAll(parent, 0700); err != nil {
		return err
	}
	dir, err := os.MkdirTemp(parent, "")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	f(dir)
	return nil
}
