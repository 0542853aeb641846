package layout

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/seaward/echoflow/internal/config"
)

const (
	productDir = "HakeSurvey"
	lonDir     = "Lon"
	latDir     = "Lat"

	combinedFile = "concatenated_MVBS.nc"
)

// Layout is the on-disk output tree for one survey configuration.
type Layout struct {
	Root string
}

// Build derives the root directory name from the survey configuration and
// creates the root plus its three product subdirectories. Safe to call
// against an existing tree.
func Build(cfg config.Config) (*Layout, error) {
	name := fmt.Sprintf("%s_MVBS_%gm_%s_%s-%s",
		cfg.SurveyLabel,
		cfg.RangeBinMeters,
		cfg.PingBinLabel,
		cfg.StartDate.Format("20060102"),
		cfg.EndDate.Format("20060102"),
	)
	root := filepath.Join(cfg.OutputBase, name)

	for _, dir := range []string{root,
		filepath.Join(root, productDir),
		filepath.Join(root, lonDir),
		filepath.Join(root, latDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}

	return &Layout{Root: root}, nil
}

// ProductPath returns the binned-product file path for a source stem.
func (l *Layout) ProductPath(stem string) string {
	return filepath.Join(l.Root, productDir, "MVBS_"+stem+".nc")
}

// LonPath returns the longitude-track file path for a source stem.
func (l *Layout) LonPath(stem string) string {
	return filepath.Join(l.Root, lonDir, "MVBS_"+stem+".nc")
}

// LatPath returns the latitude-track file path for a source stem.
func (l *Layout) LatPath(stem string) string {
	return filepath.Join(l.Root, latDir, "MVBS_"+stem+".nc")
}

// ProductGlob matches every persisted binned product.
func (l *Layout) ProductGlob() string {
	return filepath.Join(l.Root, productDir, "MVBS_*.nc")
}

// LonGlob matches every persisted longitude track.
func (l *Layout) LonGlob() string {
	return filepath.Join(l.Root, lonDir, "MVBS_*.nc")
}

// LatGlob matches every persisted latitude track.
func (l *Layout) LatGlob() string {
	return filepath.Join(l.Root, latDir, "MVBS_*.nc")
}

// CombinedPath returns the final merged output file path.
func (l *Layout) CombinedPath() string {
	return filepath.Join(l.Root, combinedFile)
}
