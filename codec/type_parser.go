// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

// Typed is implemented by every value that is serialized behind a
// one-byte type prefix.
type Typed interface {
	GetTypeID() uint8
}

// TypeParser maps a type ID to the function that decodes it.
type TypeParser[T Typed] struct {
	indexToDecoder map[uint8]func(*Packer) (T, error)
}

func NewTypeParser[T Typed]() *TypeParser[T] {
	return &TypeParser[T]{
		indexToDecoder: map[uint8]func(*Packer) (T, error){},
	}
}

// Register adds a decoder for the type ID of [instance].
func (p *TypeParser[T]) Register(instance T, f func(*Packer) (T, error)) error {
	index := instance.GetTypeID()
	if _, ok := p.indexToDecoder[index]; ok {
		return ErrDuplicateItem
	}
	p.indexToDecoder[index] = f
	return nil
}

func (p *TypeParser[T]) LookupIndex(index uint8) (func(*Packer) (T, error), bool) {
	f, ok := p.indexToDecoder[index]
	return f, ok
}
