package utils

import (
	"errors"

	"github.com/speps/go-hashids/v2"
)

type HashEncoder struct {
	hd *hashids.HashID
}

func NewHashEncoder(salt string) (*HashEncoder, error) {
	data := hashids.NewData()
	data.Salt = salt
	data.MinLength = 8

	hd, err := hashids.NewWithData(data)
	if err != nil {
		return nil, err
	}
	return &HashEncoder{hd: hd}, nil
}

func (e *HashEncoder) Encode(numbers ...int64) (string, error) {
	for _, n := range numbers {
		if n < 0 {
			return "", errors.New("hashids: negative number")
		}
	}
	return e.hd.EncodeInt64(numbers)
}

func (e *HashEncoder) Decode(hash string) ([]int64, error) {
	return e.hd.DecodeInt64WithError(hash)
}
