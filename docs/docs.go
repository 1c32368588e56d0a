// Package docs registers the OpenAPI document of the order sync API with
// swag. swagger.json is generated from the handler annotations; regenerate it
// after changing a route or DTO.
package docs

//go:generate swag init --dir ../ --generalInfo cmd/server/main.go --output . --outputTypes json --parseInternal

import (
	_ "embed"

	"github.com/swaggo/swag/v2"
)

//go:embed swagger.json
var document string

type spec struct{}

func (spec) ReadDoc() string { return document }

func init() {
	swag.Register(swag.Name, spec{})
}
