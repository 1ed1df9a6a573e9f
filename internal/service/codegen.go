package service

import (
	"fmt"

	"github.com/jaevor/go-nanoid"
)

// Alphabet - 62 символа base62, безопасные для сегмента пути URL
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// CodeGenerator возвращает новый случайный код фиксированной длины
type CodeGenerator func() string

// CodeGeneratorFactory создаёт генератор кодов заданной длины
type CodeGeneratorFactory func(length int) (CodeGenerator, error)

// minNanoidLength - nanoid.CustomASCII зацикливается на длине меньше 5
const minNanoidLength = 5

// NewCodeGenerator создаёт генератор на crypto/rand: каждый символ выбирается
// равновероятно из Alphabet. Короткие коды берутся префиксом кода длины 5.
func NewCodeGenerator(length int) (CodeGenerator, error) {
	if length <= 0 {
		return nil, fmt.Errorf("invalid code length %d", length)
	}

	gen, err := nanoid.CustomASCII(Alphabet, max(length, minNanoidLength))
	if err != nil {
		return nil, fmt.Errorf("failed to create code generator of length %d: %w", length, err)
	}
	if length >= minNanoidLength {
		return CodeGenerator(gen), nil
	}
	return func() string {
		return gen()[:length]
	}, nil
}
