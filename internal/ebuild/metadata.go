package ebuild

import (
	"encoding/xml"
	"os"
)

// pkgMetadata mirrors the parts of metadata.xml this tool consumes.
type pkgMetadata struct {
	XMLName     xml.Name          `xml:"pkgmetadata"`
	Maintainers []metadataPerson  `xml:"maintainer"`
}

type metadataPerson struct {
	Type  string `xml:"type,attr"`
	Email string `xml:"email"`
	Name  string `xml:"name"`
}

// readMetadataXML parses a metadata.xml file and returns the maintainer
// entries in declaration order. A missing file yields no maintainers, which
// downstream treats as maintainer-needed.
func readMetadataXML(path string) ([]Maintainer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var meta pkgMetadata
	if err := xml.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	maintainers := make([]Maintainer, 0, len(meta.Maintainers))
	for _, m := range meta.Maintainers {
		if m.Email == "" {
			continue
		}
		maintainers = append(maintainers, Maintainer{Email: m.Email, Name: m.Name})
	}
	return maintainers, nil
}
