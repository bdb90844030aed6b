package storage

import (
	"fmt"
	"path"
	"strings"
)

const gsScheme = "gs://"

// ObjectRef identifies a Cloud Storage object.
type ObjectRef struct {
	Bucket string
	Object string
}

// String renders the ref as gs://bucket/object.
func (r ObjectRef) String() string {
	return gsScheme + r.Bucket + "/" + r.Object
}

// ParseObjectRef accepts gs://bucket/object or a bare object name resolved against defaultBucket.
func ParseObjectRef(value, defaultBucket string) (ObjectRef, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return ObjectRef{}, fmt.Errorf("storage: object reference is required")
	}
	ref := ObjectRef{Bucket: strings.TrimSpace(defaultBucket), Object: strings.TrimPrefix(value, "/")}
	if rest, ok := strings.CutPrefix(value, gsScheme); ok {
		bucket, object, found := strings.Cut(rest, "/")
		if !found {
			return ObjectRef{}, fmt.Errorf("storage: object name missing in %q", value)
		}
		ref = ObjectRef{Bucket: bucket, Object: object}
	}
	if ref.Bucket == "" {
		return ObjectRef{}, fmt.Errorf("storage: bucket is required for %q", value)
	}
	if ref.Object == "" || strings.Contains(ref.Object, "..") {
		return ObjectRef{}, fmt.Errorf("storage: invalid object name in %q", value)
	}
	return ref, nil
}

// PersonalizationPath builds orders/<orderID>/personalization/<n>-<name>.
func PersonalizationPath(orderID string, index int, fileName string) (string, error) {
	orderID, err := validateSegment("orderID", orderID)
	if err != nil {
		return "", err
	}
	if index < 0 {
		return "", fmt.Errorf("storage: index must not be negative")
	}
	name, err := validateFileName(path.Base(strings.TrimSpace(fileName)))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("orders/%s/personalization/%d-%s", orderID, index, name), nil
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return "", fmt.Errorf("storage: %s is required", name)
	case strings.ContainsAny(value, "/\\"):
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	case strings.Contains(value, ".."):
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}

func validateFileName(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "." || value == "/" {
		return "", fmt.Errorf("storage: fileName is required")
	}
	return validateSegment("fileName", value)
}
