// Package model holds model-name rules: sanitization of caller-supplied names
// and generation of fresh ones.
package model

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/kailas-cloud/modeld/internal/domain"
)

// NameLength is the length of generated model names.
const NameLength = 32

// Charset is the alphabet of generated model names.
const Charset = "0123456789abcdefghijklmnopqrstuvwxyz"

var charsetSize = big.NewInt(int64(len(Charset)))

// Sanitize reduces a caller-supplied name to its final path component.
// "../../etc" becomes "etc". Names that reduce to "", "." or ".." are rejected.
func Sanitize(name string) (string, error) {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	switch name {
	case "", ".", "..":
		return "", domain.ErrInvalidName
	}
	if strings.ContainsRune(name, 0) {
		return "", domain.ErrInvalidName
	}
	return name, nil
}

// Generate returns a random name of NameLength characters drawn uniformly from Charset.
func Generate() (string, error) {
	var b strings.Builder
	b.Grow(NameLength)
	for range NameLength {
		n, err := rand.Int(rand.Reader, charsetSize)
		if err != nil {
			return "", fmt.Errorf("generate model name: %w", err)
		}
		b.WriteByte(Charset[n.Int64()])
	}
	return b.String(), nil
}
