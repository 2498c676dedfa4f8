// Package api embeds the HTTP and event contracts of the picking engine.
package api

import _ "embed"

// OpenAPI is the HTTP contract served under /api/v1
//
//go:embed openapi.yaml
var OpenAPI []byte

// AsyncAPI describes the events relayed to wms.picking.batches
//
//go:embed asyncapi.yaml
var AsyncAPI []byte
