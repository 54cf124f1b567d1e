package entities

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ElementKind discriminates the variants of StreamElement
type ElementKind string

const (
	ElementKindText          ElementKind = "text"
	ElementKindCard          ElementKind = "card"
	ElementKindLine          ElementKind = "line"
	ElementKindImageSearch   ElementKind = "image_search"
	ElementKindImageResolved ElementKind = "image_resolved"
	ElementKindUnrecognized  ElementKind = "unrecognized"
)

// Wire discriminants used by the generator
const (
	wireTypeText  = "text"
	wireTypeCard  = "card"
	wireTypeLine  = "line"
	wireTypeImage = "image"
)

// TextElement is a markdown/LaTeX text block
type TextElement struct {
	X         float64
	Y         float64
	Content   string
	Width     *float64
	TextColor string
	FontSize  *float64
}

// CardElement is a text block rendered on a colored card
type CardElement struct {
	X               float64
	Y               float64
	Content         string
	Width           *float64
	BackgroundColor string
	TextColor       string
	FontSize        *float64
}

// LineElement is a straight vector segment
type LineElement struct {
	X1             float64
	Y1             float64
	X2             float64
	Y2             float64
	Color          string
	ThicknessClass string
}

// ImageSearchElement asks the board to find an image for a query
type ImageSearchElement struct {
	X      float64
	Y      float64
	Search string
	Width  *float64
	Height *float64
}

// ImageResolvedElement is an image whose final size was computed by the generator
type ImageResolvedElement struct {
	X        float64
	Y        float64
	ImageURL string
	Width    float64
	Height   float64
}

// UnrecognizedElement keeps an object with an unknown discriminant
type UnrecognizedElement struct {
	Type  string
	Error string
	Raw   json.RawMessage
}

// Narration is the optional audio attached to an element
type Narration struct {
	SpeakAloud   string
	AudioDataURL string
}

// HasAudio reports whether there is anything to narrate
func (n Narration) HasAudio() bool {
	return strings.TrimSpace(n.SpeakAloud) != "" || n.AudioDataURL != ""
}

// StreamElement is one decoded generator instruction. Exactly one payload
// pointer matching Kind is set.
type StreamElement struct {
	Kind          ElementKind
	Text          *TextElement
	Card          *CardElement
	Line          *LineElement
	ImageSearch   *ImageSearchElement
	ImageResolved *ImageResolvedElement
	Unrecognized  *UnrecognizedElement
	Narration     Narration
}

// Position returns the anchor coordinates of the element
func (e StreamElement) Position() (float64, float64) {
	switch e.Kind {
	case ElementKindText:
		return e.Text.X, e.Text.Y
	case ElementKindCard:
		return e.Card.X, e.Card.Y
	case ElementKindLine:
		return e.Line.X1, e.Line.Y1
	case ElementKindImageSearch:
		return e.ImageSearch.X, e.ImageSearch.Y
	case ElementKindImageResolved:
		return e.ImageResolved.X, e.ImageResolved.Y
	default:
		return 0, 0
	}
}

// wireElement is the flat JSON shape produced by the generator
type wireElement struct {
	Type            string   `json:"type,omitempty"`
	X               *float64 `json:"x,omitempty"`
	Y               *float64 `json:"y,omitempty"`
	X1              *float64 `json:"x1,omitempty"`
	Y1              *float64 `json:"y1,omitempty"`
	X2              *float64 `json:"x2,omitempty"`
	Y2              *float64 `json:"y2,omitempty"`
	Content         string   `json:"content,omitempty"`
	Width           *float64 `json:"width,omitempty"`
	Height          *float64 `json:"height,omitempty"`
	BackgroundColor string   `json:"backgroundColor,omitempty"`
	TextColor       string   `json:"textColor,omitempty"`
	FontSize        *float64 `json:"fontSize,omitempty"`
	Color           string   `json:"color,omitempty"`
	Thickness       string   `json:"thickness,omitempty"`
	ThicknessClass  string   `json:"thicknessClass,omitempty"`
	Search          string   `json:"search,omitempty"`
	ImageURL        string   `json:"imageUrl,omitempty"`
	SpeakAloud      string   `json:"speakAloud,omitempty"`
	AudioDataURL    string   `json:"audioDataUrl,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// DecodeStreamElement decodes one balanced JSON object into a StreamElement.
// Unknown discriminants decode into the unrecognized variant; only
// syntactically invalid input returns an error.
func DecodeStreamElement(raw []byte) (StreamElement, error) {
	var w wireElement
	if err := json.Unmarshal(raw, &w); err != nil {
		return StreamElement{}, fmt.Errorf("failed to decode element: %w", err)
	}

	el := StreamElement{
		Narration: Narration{SpeakAloud: w.SpeakAloud, AudioDataURL: w.AudioDataURL},
	}

	switch strings.ToLower(strings.TrimSpace(w.Type)) {
	case wireTypeText:
		el.Kind = ElementKindText
		el.Text = &TextElement{
			X:         deref(w.X),
			Y:         deref(w.Y),
			Content:   w.Content,
			Width:     w.Width,
			TextColor: w.TextColor,
			FontSize:  w.FontSize,
		}
	case wireTypeCard:
		el.Kind = ElementKindCard
		el.Card = &CardElement{
			X:               deref(w.X),
			Y:               deref(w.Y),
			Content:         w.Content,
			Width:           w.Width,
			BackgroundColor: w.BackgroundColor,
			TextColor:       w.TextColor,
			FontSize:        w.FontSize,
		}
	case wireTypeLine:
		thickness := w.ThicknessClass
		if thickness == "" {
			thickness = w.Thickness
		}
		el.Kind = ElementKindLine
		el.Line = &LineElement{
			X1:             deref(w.X1),
			Y1:             deref(w.Y1),
			X2:             deref(w.X2),
			Y2:             deref(w.Y2),
			Color:          w.Color,
			ThicknessClass: thickness,
		}
	case wireTypeImage:
		switch {
		case w.ImageURL != "":
			el.Kind = ElementKindImageResolved
			el.ImageResolved = &ImageResolvedElement{
				X:        deref(w.X),
				Y:        deref(w.Y),
				ImageURL: w.ImageURL,
				Width:    deref(w.Width),
				Height:   deref(w.Height),
			}
		case strings.TrimSpace(w.Search) != "":
			el.Kind = ElementKindImageSearch
			el.ImageSearch = &ImageSearchElement{
				X:      deref(w.X),
				Y:      deref(w.Y),
				Search: w.Search,
				Width:  w.Width,
				Height: w.Height,
			}
		default:
			el.Kind = ElementKindUnrecognized
			el.Unrecognized = &UnrecognizedElement{Type: w.Type, Raw: append(json.RawMessage(nil), raw...)}
		}
	default:
		el.Kind = ElementKindUnrecognized
		el.Unrecognized = &UnrecognizedElement{
			Type:  w.Type,
			Error: w.Error,
			Raw:   append(json.RawMessage(nil), raw...),
		}
	}

	return el, nil
}

// MarshalJSON encodes the element back into the generator wire shape
func (e StreamElement) MarshalJSON() ([]byte, error) {
	w := wireElement{
		SpeakAloud:   e.Narration.SpeakAloud,
		AudioDataURL: e.Narration.AudioDataURL,
	}

	switch e.Kind {
	case ElementKindText:
		w.Type = wireTypeText
		w.X, w.Y = ptr(e.Text.X), ptr(e.Text.Y)
		w.Content = e.Text.Content
		w.Width = e.Text.Width
		w.TextColor = e.Text.TextColor
		w.FontSize = e.Text.FontSize
	case ElementKindCard:
		w.Type = wireTypeCard
		w.X, w.Y = ptr(e.Card.X), ptr(e.Card.Y)
		w.Content = e.Card.Content
		w.Width = e.Card.Width
		w.BackgroundColor = e.Card.BackgroundColor
		w.TextColor = e.Card.TextColor
		w.FontSize = e.Card.FontSize
	case ElementKindLine:
		w.Type = wireTypeLine
		w.X1, w.Y1 = ptr(e.Line.X1), ptr(e.Line.Y1)
		w.X2, w.Y2 = ptr(e.Line.X2), ptr(e.Line.Y2)
		w.Color = e.Line.Color
		w.ThicknessClass = e.Line.ThicknessClass
	case ElementKindImageSearch:
		w.Type = wireTypeImage
		w.X, w.Y = ptr(e.ImageSearch.X), ptr(e.ImageSearch.Y)
		w.Search = e.ImageSearch.Search
		w.Width = e.ImageSearch.Width
		w.Height = e.ImageSearch.Height
	case ElementKindImageResolved:
		w.Type = wireTypeImage
		w.X, w.Y = ptr(e.ImageResolved.X), ptr(e.ImageResolved.Y)
		w.ImageURL = e.ImageResolved.ImageURL
		w.Width = ptr(e.ImageResolved.Width)
		w.Height = ptr(e.ImageResolved.Height)
	case ElementKindUnrecognized:
		if e.Unrecognized != nil && len(e.Unrecognized.Raw) > 0 {
			return e.Unrecognized.Raw, nil
		}
		return nil, errors.New("unrecognized element has no raw payload")
	default:
		return nil, fmt.Errorf("unknown element kind %q", e.Kind)
	}

	return json.Marshal(w)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func ptr(v float64) *float64 {
	return &v
}
