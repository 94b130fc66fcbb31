package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"math"
	"net/http"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"taxigrid/internal/dispatch"
	"taxigrid/internal/geom"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	schemaBase   = "https://taxigrid.local/schemas/"
	maxBodyBytes = 64 << 10
)

type requestSchemas struct {
	route     *jsonschema.Schema
	book      *jsonschema.Schema
	startRide *jsonschema.Schema
}

var schemas = mustCompileSchemas()

func mustCompileSchemas() requestSchemas {
	c := jsonschema.NewCompiler()
	names, err := fs.Glob(schemaFS, "schemas/*.json")
	if err != nil {
		panic(err)
	}
	for _, name := range names {
		data, err := schemaFS.ReadFile(name)
		if err != nil {
			panic(err)
		}
		if err := c.AddResource(schemaBase+path.Base(name), bytes.NewReader(data)); err != nil {
			panic(fmt.Sprintf("schema %s: %v", name, err))
		}
	}
	return requestSchemas{
		route:     c.MustCompile(schemaBase + "route.json"),
		book:      c.MustCompile(schemaBase + "book.json"),
		startRide: c.MustCompile(schemaBase + "start_ride.json"),
	}
}

// decodeValid reads the body, checks it against s and decodes it into dst.
func decodeValid(r *http.Request, s *jsonschema.Schema, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

// pointJSON accepts numbers or numeric strings; fractions are truncated
// toward zero.
type pointJSON struct {
	X json.Number `json:"x"`
	Y json.Number `json:"y"`
}

func (p pointJSON) point() (geom.Point, error) {
	x, err := coord(p.X)
	if err != nil {
		return geom.Point{}, err
	}
	y, err := coord(p.Y)
	if err != nil {
		return geom.Point{}, err
	}
	return geom.Pt(x, y), nil
}

func coord(n json.Number) (int, error) {
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("coordinate %q: %w", n, err)
	}
	if math.IsNaN(f) || math.Abs(f) > math.MaxInt32 {
		return 0, dispatch.ErrOutOfBounds
	}
	return int(f), nil
}

type routeRequest struct {
	Pickup  pointJSON  `json:"pickup"`
	Dropoff *pointJSON `json:"dropoff"`
}

type bookRequest struct {
	Pickup pointJSON `json:"pickup"`
	Taxi   pointJSON `json:"taxi"`
}

type startRideRequest struct {
	Dropoff pointJSON `json:"dropoff"`
	Taxi    pointJSON `json:"taxi"`
}
