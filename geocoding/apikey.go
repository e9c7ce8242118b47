// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"errors"
	"fmt"
	"log"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

// ErrNoAPIKey is returned when no key was configured and none could be found
// through Application Default Credentials.
var ErrNoAPIKey = errors.New("no geocoding API key available")

// KeyLookup describes where to find the API key when it is not configured.
type KeyLookup struct {
	// DisplayName of the key resource in the API Keys service.
	DisplayName string
	// ProjectID used when the default credentials do not carry one.
	ProjectID string
}

// ResolveAPIKey returns explicit when set, otherwise looks the key up with
// Application Default Credentials.
func ResolveAPIKey(ctx context.Context, explicit string, lookup KeyLookup) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if lookup.DisplayName == "" {
		return "", ErrNoAPIKey
	}

	key, err := apiKeyFromADC(ctx, lookup)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoAPIKey, err)
	}

	return key, nil
}

func apiKeyFromADC(ctx context.Context, lookup KeyLookup) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return "", fmt.Errorf("finding default credentials: %w", err)
	}

	projectID := creds.ProjectID
	if projectID == "" {
		// user credentials without a quota project
		projectID = lookup.ProjectID
		if projectID == "" {
			return "", errors.New("default credentials carry no project ID")
		}

		log.Printf("⚠️ No Project ID found in credentials. Using configured: %s", projectID)
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating apikeys client: %w", err)
	}
	defer client.Close()

	it := client.ListKeys(ctx, &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", projectID),
	})

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("listing keys: %w", err)
		}

		if key.DisplayName != lookup.DisplayName {
			continue
		}

		// ListKeys redacts the secret
		log.Printf("Found key resource '%s', retrieving secret...", key.Name)

		resp, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.Name})
		if err != nil {
			return "", fmt.Errorf("getting key string: %w", err)
		}

		if resp.KeyString == "" {
			return "", fmt.Errorf("key '%s' has an empty key string", lookup.DisplayName)
		}

		return resp.KeyString, nil
	}

	return "", fmt.Errorf("key with display name '%s' not found in project %s", lookup.DisplayName, projectID)
}
