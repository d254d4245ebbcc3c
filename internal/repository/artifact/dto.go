package artifact

import "github.com/kailas-cloud/modeld/internal/domain"

const formatVersion = 1

const (
	metadataFile        = "metadata.json"
	userFeaturesFile    = "user_features.json"
	productFeaturesFile = "product_features.json"
)

// metadata is the on-disk header of an artifact directory.
type metadata struct {
	Format     int     `json:"format"`
	Rank       int     `json:"rank"`
	Iterations int     `json:"iterations"`
	Lambda     float64 `json:"lambda"`
	CreatedAt  int64   `json:"createdAt"`
}

func metadataFromArtifact(a domain.Artifact) metadata {
	return metadata{
		Format:     formatVersion,
		Rank:       a.Rank,
		Iterations: a.Iterations,
		Lambda:     a.Lambda,
		CreatedAt:  a.CreatedAt,
	}
}
