package codegen

import (
	"net/url"
	"strings"

	"parkwise/internal/pkg/config"
)

// QRServer builds image URLs for a public QR rendering endpoint. Nothing is fetched;
// the client loads the image itself.
type QRServer struct {
	endpoint string
	size     string
}

func NewQRServer(cfg config.CodeGenConfig) *QRServer {
	return &QRServer{endpoint: cfg.Endpoint, size: cfg.Size}
}

func (q *QRServer) URL(payload string) string {
	// the endpoint decodes "+" literally, so spaces must travel as %20
	data := strings.ReplaceAll(url.QueryEscape(payload), "+", "%20")
	return q.endpoint + "?size=" + q.size + "&data=" + data
}
