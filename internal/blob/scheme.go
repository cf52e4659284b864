package blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/abhisek/sidd/internal/ms"
	"github.com/abhisek/sidd/internal/taxonomy"
)

// SchemeContentType is stored with exported scheme documents.
const SchemeContentType = "application/xml"

// PutScheme writes scheme's XML document under key.
func PutScheme(ctx context.Context, st Store, key string, scheme *ms.MappingScheme) (Info, error) {
	var buf bytes.Buffer
	if err := scheme.WriteXML(&buf); err != nil {
		return Info{}, fmt.Errorf("encoding scheme: %w", err)
	}
	return st.Put(ctx, key, &buf, PutOptions{
		ContentType: SchemeContentType,
		Metadata: map[string]string{
			"taxonomy": scheme.Taxonomy().Name(),
			"format":   ms.FormatVersion,
		},
	})
}

// GetScheme reads the scheme stored under key. A nil tax resolves the
// taxonomy named in the document.
func GetScheme(ctx context.Context, st Store, key string, tax taxonomy.Taxonomy) (*ms.MappingScheme, error) {
	_, rc, err := st.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	defer rc.Close()
	return ms.ReadXML(rc, tax)
}
