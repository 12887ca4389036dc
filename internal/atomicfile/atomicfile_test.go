// Copyright (c) 2025 Canonical Ltd
//
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

package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileWithFs(t *testing.T) {
	testcases := map[string]struct {
		existing []byte
		data     []byte
		perm     os.FileMode
	}{
		"new file": {
			data: []byte("log_level: info\n"),
			perm: 0o640,
		},
		"replace": {
			existing: []byte("log_level: debug\n"),
			data:     []byte("log_level: error\n"),
			perm:     0o600,
		},
	}

	for name, tc := range testcases {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewMemMapFs()
			filename := "/etc/ossid/ossid.yaml"

			require.NoError(t, fs.MkdirAll(filepath.Dir(filename), 0o750))

			if tc.existing != nil {
				require.NoError(t, afero.WriteFile(fs, filename, tc.existing, 0o644))
			}

			require.NoError(t, WriteFileWithFs(fs, filename, tc.data, tc.perm))

			data, err := afero.ReadFile(fs, filename)
			require.NoError(t, err)
			assert.Equal(t, tc.data, data)

			info, err := fs.Stat(filename)
			require.NoError(t, err)
			assert.Equal(t, tc.perm, info.Mode().Perm())

			entries, err := afero.ReadDir(fs, filepath.Dir(filename))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temporary file left behind")
		})
	}
}

func TestWriteFileMissingDir(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())

	assert.Error(t, WriteFileWithFs(fs, "/etc/ossid/ossid.yaml", []byte("x"), 0o640))
}

func TestWriteFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "ossid.yaml")

	require.NoError(t, WriteFile(filename, []byte("log_level: info\n"), 0o640))

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "log_level: info\n", string(data))
}
