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
	"path/filepath"
	"testing"
)

func TestLoadConfigAppliesUnsetFieldsOnly(t *testing.T) {
	dashj, dashVBMB, dashPassword, dashDigest, dashq = 0, 1, "", true, false

	path := filepath.Join(t.TempDir(), "gnzip.yaml")
	body := "workers: 8\nvbMB: 4\npassword: hunter2\ndigest: false\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	// vb-mb was passed explicitly on the command line, so the config
	// file's vbMB: 4 must not override the flag's own value of 2.
	dashVBMB = 2
	explicit := map[string]bool{"vb-mb": true}

	if err := loadConfig(path, explicit); err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if dashj != 8 {
		t.Errorf("dashj = %d, want 8", dashj)
	}
	if dashVBMB != 2 {
		t.Errorf("dashVBMB = %d, want 2 (explicit flag should win)", dashVBMB)
	}
	if dashPassword != "hunter2" {
		t.Errorf("dashPassword = %q, want hunter2", dashPassword)
	}
	if dashDigest {
		t.Errorf("dashDigest = true, want false from config")
	}
}

func TestLoadConfigRejectsMissingFile(t *testing.T) {
	if err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
