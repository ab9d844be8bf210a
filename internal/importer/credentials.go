package importer

import (
	"fmt"
	"os"

	goption "google.golang.org/api/option"
)

// GoogleOptions returns client options for a service account given either
// inline JSON or a key file. With neither, nil is returned and the Google
// clients fall back to Application Default Credentials.
func GoogleOptions(inlineJSON, file string, scopes ...string) ([]goption.ClientOption, error) {
	var credentialsJSON []byte
	switch {
	case inlineJSON != "":
		credentialsJSON = []byte(inlineJSON)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file %s: %w", file, err)
		}
		credentialsJSON = b
	default:
		return nil, nil
	}

	opts := []goption.ClientOption{goption.WithCredentialsJSON(credentialsJSON)}
	if len(scopes) > 0 {
		opts = append(opts, goption.WithScopes(scopes...))
	}
	return opts, nil
}
