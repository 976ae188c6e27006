// Copyright (C) 2024 gnzcore contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"os"

	"sigs.k8s.io/yaml"

	"github.com/gnzcore/gnzcore/gnzerr"
)

// fileConfig holds default flag values loaded from a -config sidecar,
// applied after flag.Parse to every flag not set explicitly on the
// command line (main finds those with flag.Visit), so explicit flags
// still win.
// Grounded on cmd/sdb's definition-file decode (db.DecodeDefinition),
// generalized from JSON to YAML-or-JSON via sigs.k8s.io/yaml, which
// parses plain JSON too since it round-trips through YAML's superset.
type fileConfig struct {
	Workers  *int    `json:"workers,omitempty"`
	VBMB     *int    `json:"vbMB,omitempty"`
	Password *string `json:"password,omitempty"`
	Digest   *bool   `json:"digest,omitempty"`
	Quiet    *bool   `json:"quiet,omitempty"`
}

// loadConfig reads path and applies any fields it sets as new values
// for the corresponding flag variables, skipping any flag present in
// explicit (flags the user actually passed on the command line, per
// flag.Visit) so an explicit flag always wins over the sidecar.
func loadConfig(path string, explicit map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return gnzerr.New(gnzerr.User, "reading config %s: %v", path, err)
	}
	var c fileConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return gnzerr.New(gnzerr.User, "parsing config %s: %v", path, err)
	}
	if c.Workers != nil && !explicit["j"] {
		dashj = *c.Workers
	}
	if c.VBMB != nil && !explicit["vb-mb"] {
		dashVBMB = *c.VBMB
	}
	if c.Password != nil && !explicit["password"] {
		dashPassword = *c.Password
	}
	if c.Digest != nil && !explicit["digest"] {
		dashDigest = *c.Digest
	}
	if c.Quiet != nil && !explicit["q"] {
		dashq = *c.Quiet
	}
	return nil
}
