package server

import "github.com/labstack/echo/v4"

func (s *Server) handleHealth(e echo.Context) error {
	return e.JSON(200, map[string]string{
		"version": "sigil " + s.config.Version,
	})
}

func (s *Server) handleRoot(e echo.Context) error {
	return e.String(200, "sigil: decentralized publisher identity\n\nthis is an xrpc service. see /xrpc/_health\n")
}

func (s *Server) handleRobots(e echo.Context) error {
	return e.String(200, "User-agent: *\nAllow: /")
}
