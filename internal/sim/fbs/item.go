package fbs

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownItem    = errors.New("unknown item")
	ErrDuplicateItem  = errors.New("duplicate item")
	ErrUnknownElement = errors.New("unknown element")
	ErrBadYears       = errors.New("years must be strictly increasing")
)

const (
	OriginAnimal   = "Animal Products"
	OriginVegetal  = "Vegetal Products"
	OriginCultured = "Cultured Products"
)

// Item is a commodity with its classification labels. Classification never
// changes once the item is registered on a sheet.
type Item struct {
	Code   int    `json:"code"`
	Name   string `json:"name"`
	Group  string `json:"group"`
	Origin string `json:"origin"`
}

func (it Item) validate() error {
	if it.Name == "" || it.Group == "" || it.Origin == "" {
		return fmt.Errorf("item %d: name, group and origin are required", it.Code)
	}
	return nil
}

// Element is one flow of a food balance sheet.
type Element string

const (
	Production Element = "production"
	Imports    Element = "imports"
	Exports    Element = "exports"
	Stock      Element = "stock"
	Losses     Element = "losses"
	Processing Element = "processing"
	Other      Element = "other"
	Feed       Element = "feed"
	Seed       Element = "seed"
	Food       Element = "food"
)

// Elements lists every element in canonical order.
var Elements = []Element{Production, Imports, Exports, Stock, Losses, Processing, Other, Feed, Seed, Food}

func ParseElement(s string) (Element, error) {
	for _, e := range Elements {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownElement, s)
}

// Sign says how a forwarded delta lands on its target element.
type Sign int

const (
	// Add: target += delta.
	Add Sign = iota
	// Subtract: target -= delta.
	Subtract
)

func (s Sign) apply(target, delta float64) float64 {
	if s == Subtract {
		return target - delta
	}
	return target + delta
}

func (s Sign) String() string {
	if s == Subtract {
		return "subtract"
	}
	return "add"
}

// Flow names the element receiving a forwarded delta and the sign it is
// applied with.
type Flow struct {
	Element Element
	Sign    Sign
}

func (f Flow) String() string { return f.Sign.String() + ":" + string(f.Element) }
