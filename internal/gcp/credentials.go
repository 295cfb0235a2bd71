// Package gcp resolves Google Cloud client options shared by the OCR and
// document-analysis services.
package gcp

import (
	"fmt"
	"os"

	"google.golang.org/api/option"
)

// ClientOptions returns the credential options found in the environment.
// GOOGLE_CREDENTIALS (inline JSON) wins over GOOGLE_APPLICATION_CREDENTIALS
// (file path). explicit is false when neither is set and the client falls
// back to application default credentials.
func ClientOptions() (options []option.ClientOption, explicit bool) {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}, true
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}, true
	}
	return nil, false
}

// RegionalEndpoint returns the endpoint option for a Document AI location
// other than the default multi-region "us".
func RegionalEndpoint(location string) (option.ClientOption, bool) {
	if location == "" || location == "us" {
		return nil, false
	}
	return option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", location)), true
}
