package directive

import "os"

func defaultBlobReader(name string) ([]byte, error) {
	return os.ReadFile(name) // #nosec G304 -- user-specified include path
}
