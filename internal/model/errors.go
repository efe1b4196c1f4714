package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrCorruptRecord = errors.New("corrupt record")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func corrupt(key string, err error) error {
	return fmt.Errorf("%w, key: %s, %v", ErrCorruptRecord, key, err)
}
