package main

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	MaxIPsPerRequest = 100
)

const usage = `
Usage:

curl "http://localhost:12950/country/132.99.75.15"

Also you can pass several ip addresses that you need to check, IPv6 included:

curl "http://localhost:12950/country/132.99.75.15,2001:db8::1,3.24.12.85"

`

type Server struct {
	config *Config
	db     *Database
}

func NewServer(config *Config, db *Database) *Server {
	return &Server{
		config: config,
		db:     db,
	}
}

func (s *Server) Run() error {
	logrus.Infof("starting the HTTP server on %s", s.config.Listen)
	return s.router().Run(s.config.Listen)
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.usage)
	r.GET("/country/:ips", s.resolveCountry)

	return r
}

func (s *Server) usage(c *gin.Context) {
	c.String(http.StatusOK, usage)
}

func (s *Server) resolveCountry(c *gin.Context) {
	ips, err := parseIPS(c.Param("ips"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("%s", err)})
		return
	}
	out := make(map[string]string, len(ips))
	for _, ip := range ips {
		code, ok := s.db.FindCountry(ip)
		if !ok {
			continue
		}
		out[ip.String()] = code
	}

	c.JSON(http.StatusOK, out)
}

func parseIPS(ips string) ([]netip.Addr, error) {
	if ips == "" {
		return nil, errors.New("empty ip string passed")
	}

	out := make([]netip.Addr, 0)
	parts := strings.Split(ips, ",")
	if len(parts) > MaxIPsPerRequest {
		return nil, errors.New("limit of ips in one request reached")
	}
	for _, ip := range parts {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			return nil, errors.Errorf("not correct ip passed: %s", ip)
		}
		out = append(out, addr)
	}

	if len(out) == 0 {
		return nil, errors.New("has no ip addresses to check")
	}

	return out, nil
}
