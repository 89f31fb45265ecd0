// Package extract turns one WorkUnit into one Outcome: it drives the
// endpoint client, interprets the reply, and applies field-value
// normalization. Its malformed-output retry loop is deliberately
// separate from the client's transport retry loop; the two target
// different failure modes and carry independent budgets.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/fields"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/llm"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/normalize"
)

// WorkUnit is one document lifted out of an input archive, ready for
// inference. Immutable once constructed.
type WorkUnit struct {
	Path        string
	Data        []byte
	ContentType string
}

// Outcome is the tagged result of attempting one WorkUnit. A non-empty
// Err marks a hard failure; Fields/FullText are only meaningful when
// Err is empty.
type Outcome struct {
	Path     string
	FullText string
	Fields   []llm.Field
	Err      string
}

// Failed reports whether the unit produced an error row.
func (o Outcome) Failed() bool {
	return o.Err != ""
}

// UnitExtractor is the interface the batch layer depends on.
type UnitExtractor interface {
	Extract(ctx context.Context, unit WorkUnit) Outcome
}

// Extractor implements UnitExtractor against an llm.Caller.
type Extractor struct {
	caller      llm.Caller
	defs        []fields.Definition
	schema      map[string]any
	instruction string
	retries     int
	delay       time.Duration
	log         *slog.Logger

	// sleep waits between malformed-output retries; overridable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExtractor builds an Extractor over the given caller and field
// schema. retries is the malformed-output attempt budget; delay is the
// fixed wait between those attempts.
func NewExtractor(caller llm.Caller, defs []fields.Definition, retries int, delay time.Duration, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if retries <= 0 {
		retries = 3
	}
	if delay < 0 {
		delay = 0
	}
	return &Extractor{
		caller:      caller,
		defs:        defs,
		schema:      llm.PayloadSchema(),
		instruction: llm.BuildInstruction(defs),
		retries:     retries,
		delay:       delay,
		log:         logger,
		sleep:       sleepContext,
	}
}

// Extract processes one unit to a terminal Outcome. It never returns an
// error: a bad document becomes a Failure outcome, not an aborted batch.
func (e *Extractor) Extract(ctx context.Context, unit WorkUnit) Outcome {
	e.log.Info("extract.start", "path", unit.Path, "bytes", len(unit.Data))

	for attempt := 1; attempt <= e.retries; attempt++ {
		raw, err := e.caller.Call(ctx, unit.Data, unit.ContentType, e.instruction)
		if err != nil {
			// Terminal endpoint failure; does not consume the shape budget.
			e.log.Error("extract.endpoint_failed", "path", unit.Path, "error", err)
			return Outcome{Path: unit.Path, Err: err.Error()}
		}

		payload, err := llm.DecodePayload(raw, e.schema)
		if err != nil {
			e.log.Warn("extract.malformed_output",
				"path", unit.Path,
				"attempt", attempt,
				"max_attempts", e.retries,
				"error", err,
			)
			if attempt == e.retries {
				return Outcome{
					Path: unit.Path,
					Err:  fmt.Sprintf("malformed model output after %d attempts: %v", e.retries, err),
				}
			}
			if serr := e.sleep(ctx, e.delay); serr != nil {
				return Outcome{Path: unit.Path, Err: fmt.Sprintf("retry wait aborted: %v", serr)}
			}
			continue
		}

		e.normalizeFields(payload.ExtractedFields)
		e.log.Info("extract.ok", "path", unit.Path, "fields", len(payload.ExtractedFields))
		return Outcome{Path: unit.Path, FullText: payload.FullText, Fields: payload.ExtractedFields}
	}

	return Outcome{Path: unit.Path, Err: "extraction failed after all retries"}
}

// normalizeFields applies the declared transform to each field value in
// place. Normalization is total: a value that will not parse passes
// through unchanged.
func (e *Extractor) normalizeFields(fs []llm.Field) {
	kind := make(map[string]fields.Normalization, len(e.defs))
	for _, d := range e.defs {
		kind[d.Name] = d.Normalize
	}
	for i := range fs {
		if fs[i].Value == nil {
			continue
		}
		switch kind[fs[i].FieldName] {
		case fields.NormalizeDate:
			v := normalize.Date(*fs[i].Value)
			fs[i].Value = &v
		case fields.NormalizeAmount:
			v := normalize.Amount(*fs[i].Value)
			fs[i].Value = &v
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
