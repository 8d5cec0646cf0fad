package gemini

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// encodeRequest builds a single-turn generateContent body:
//
//	{"contents":[{"role":"user","parts":[{"text":...}]}],
//	 "generationConfig":{"temperature":...,"maxOutputTokens":...}}
func encodeRequest(prompt string, temperature float64, maxTokens int) []byte {
	var e jx.Encoder
	e.ObjStart()

	e.FieldStart("contents")
	e.ArrStart()
	e.ObjStart()
	e.FieldStart("role")
	e.Str("user")
	e.FieldStart("parts")
	e.ArrStart()
	e.ObjStart()
	e.FieldStart("text")
	e.Str(prompt)
	e.ObjEnd()
	e.ArrEnd()
	e.ObjEnd()
	e.ArrEnd()

	if temperature > 0 || maxTokens > 0 {
		e.FieldStart("generationConfig")
		e.ObjStart()
		if temperature > 0 {
			e.FieldStart("temperature")
			e.Float64(temperature)
		}
		if maxTokens > 0 {
			e.FieldStart("maxOutputTokens")
			e.Int(maxTokens)
		}
		e.ObjEnd()
	}

	e.ObjEnd()
	return e.Bytes()
}

type usage struct {
	PromptTokens     int
	CandidatesTokens int
	TotalTokens      int
}

type response struct {
	// Candidates holds the text parts of each candidate.
	Candidates [][]string
	Usage      usage
}

// Text joins the parts of the first candidate.
func (r response) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	return strings.Join(r.Candidates[0], "")
}

func decodeResponse(data []byte) (response, error) {
	var r response
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "candidates":
			return d.Arr(func(d *jx.Decoder) error {
				parts, err := decodeCandidate(d)
				if err != nil {
					return errors.Wrap(err, "candidate")
				}
				r.Candidates = append(r.Candidates, parts)
				return nil
			})
		case "usageMetadata":
			return d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "promptTokenCount":
					r.Usage.PromptTokens, err = d.Int()
				case "candidatesTokenCount":
					r.Usage.CandidatesTokens, err = d.Int()
				case "totalTokenCount":
					r.Usage.TotalTokens, err = d.Int()
				default:
					err = d.Skip()
				}
				return err
			})
		default:
			return d.Skip()
		}
	})
	return r, err
}

func decodeCandidate(d *jx.Decoder) ([]string, error) {
	var parts []string
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "content" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "parts" {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "text" {
						return d.Skip()
					}
					s, err := d.Str()
					if err != nil {
						return err
					}
					parts = append(parts, s)
					return nil
				})
			})
		})
	})
	return parts, err
}

type apiError struct {
	Status  string
	Message string
}

// decodeError reads {"error":{"code":..,"message":..,"status":..}}.
func decodeError(data []byte) (apiError, error) {
	var e apiError
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "error" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "message":
				e.Message, err = d.Str()
			case "status":
				e.Status, err = d.Str()
			default:
				err = d.Skip()
			}
			return err
		})
	})
	return e, err
}
