package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrInvalidQuantity is returned when a line is added with a quantity below one.
	ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")
	// ErrLineNotFound is returned when a line key does not match any cart line.
	ErrLineNotFound = errors.New("cart: line not found")
)

// LineKey derives the merge identity of a line. Lines with equal product, options,
// personalization image and note produce the same key.
func LineKey(line CartLine) string {
	keys := slices.Sorted(maps.Keys(line.SelectedOptions))

	var b strings.Builder
	b.WriteString(line.ProductRef)
	b.WriteByte(0)
	for _, key := range keys {
		b.WriteString(string(key))
		b.WriteByte('=')
		b.WriteString(line.SelectedOptions[key])
		b.WriteByte(0)
	}
	b.WriteByte(1)
	b.WriteString(line.PersonalizationImage)
	b.WriteByte(0)
	b.WriteString(line.PersonalizationNote)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// Add merges the line into an identical existing line or appends it.
func (c *Cart) Add(line CartLine, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	line = cloneLine(line)
	line.Key = LineKey(line)
	line.Quantity = quantity

	if idx := c.indexOf(line.Key); idx >= 0 {
		c.Lines[idx].Quantity += quantity
	} else {
		c.Lines = append(c.Lines, line)
	}
	c.Visible = true
	return nil
}

// UpdateQuantity sets the quantity of a line. Quantities below one remove the line.
func (c *Cart) UpdateQuantity(key string, quantity int) error {
	idx := c.indexOf(key)
	if idx < 0 {
		return ErrLineNotFound
	}
	if quantity < 1 {
		c.Lines = slices.Delete(c.Lines, idx, idx+1)
		return nil
	}
	c.Lines[idx].Quantity = quantity
	return nil
}

// Remove deletes the line identified by key.
func (c *Cart) Remove(key string) error {
	idx := c.indexOf(key)
	if idx < 0 {
		return ErrLineNotFound
	}
	c.Lines = slices.Delete(c.Lines, idx, idx+1)
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = nil
}

// Subtotal sums unit price times quantity over all lines.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, line := range c.Lines {
		total += line.LineTotal()
	}
	return total
}

// ItemCount returns the total number of units in the cart.
func (c Cart) ItemCount() int {
	count := 0
	for _, line := range c.Lines {
		count += line.Quantity
	}
	return count
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}

// Snapshot returns a deep copy of the cart lines.
func (c Cart) Snapshot() []CartLine {
	if len(c.Lines) == 0 {
		return nil
	}
	out := make([]CartLine, len(c.Lines))
	for i, line := range c.Lines {
		out[i] = cloneLine(line)
	}
	return out
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	out := c
	out.Lines = c.Snapshot()
	return out
}

func (c Cart) indexOf(key string) int {
	if key == "" {
		return -1
	}
	return slices.IndexFunc(c.Lines, func(line CartLine) bool {
		return line.Key == key
	})
}

func cloneLine(line CartLine) CartLine {
	line.SelectedOptions = maps.Clone(line.SelectedOptions)
	line.OptionLabels = maps.Clone(line.OptionLabels)
	return line
}
