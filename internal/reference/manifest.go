package reference

import (
	"context"
	"encoding/json"
	"io/fs"
	"path"
	"strings"

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
)

// Manifest lists the image files of one category.
type Manifest struct {
	Images []string `json:"images"`
}

// CategoryPath returns the locator path of a category: "normal" or
// "ads/<name>".
func CategoryPath(name string) string {
	if name == NormalCategory {
		return NormalCategory
	}
	return path.Join(AdsDir, name)
}

// ValidCategoryName reports whether name is a single path element that stays
// inside the ads directory.
func ValidCategoryName(name string) bool {
	return fs.ValidPath(name) && name != "." && !strings.Contains(name, "/")
}

// ReadManifest reads <categoryPath>/index.json through loc. Any failure is a
// ManifestUnavailable error; callers treat it as an empty category.
func ReadManifest(ctx context.Context, loc Locator, categoryPath string) ([]string, error) {
	p := path.Join(categoryPath, ManifestName)
	rc, err := loc.Open(ctx, p)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ManifestUnavailable, "open manifest").WithMetadata("path", p)
	}
	defer rc.Close()

	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ManifestUnavailable, "decode manifest").WithMetadata("path", p)
	}
	return m.Images, nil
}
