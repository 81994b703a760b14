// Package geoip resolves viewer addresses to a country and city for view
// statistics. A missing database disables lookups instead of failing.
package geoip

import (
	"log/slog"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

type Location struct {
	Country string
	City    string
}

type Resolver struct {
	db *maxminddb.Reader
}

type geoResult struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
}

func New(dbPath string) *Resolver {
	if dbPath == "" {
		return &Resolver{}
	}
	db, err := maxminddb.Open(dbPath)
	if err != nil {
		slog.Warn("geoip: failed to open database, geolocation disabled", "path", dbPath, "error", err)
		return &Resolver{}
	}
	slog.Info("geoip: loaded database", "path", dbPath, "type", db.Metadata.DatabaseType)
	return &Resolver{db: db}
}

func (r *Resolver) Enabled() bool {
	return r != nil && r.db != nil
}

func (r *Resolver) Lookup(ipStr string) Location {
	if !r.Enabled() || ipStr == "" {
		return Location{}
	}
	ip := net.ParseIP(ipStr)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() {
		return Location{}
	}
	var result geoResult
	if err := r.db.Lookup(ip, &result); err != nil {
		slog.Debug("geoip: lookup failed", "ip", ipStr, "error", err)
		return Location{}
	}
	return Location{Country: result.Country.ISOCode, City: result.City.Names["en"]}
}

func (r *Resolver) Close() error {
	if r.Enabled() {
		return r.db.Close()
	}
	return nil
}
