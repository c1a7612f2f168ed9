package wine

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/talDoFlemis/YggdrasilVinum/pkg/dberror"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/logging"
)

// csvHeader is the mandatory first row of the source catalog.
var csvHeader = []string{"vinho_id", "rotulo", "ano_colheita", "tipo"}

// ReadCSV parses the source catalog from r. The header row is
// required; every data row must carry the four columns.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)

	header, err := reader.Read()
	if err != nil {
		return nil, dberror.Wrap(err, dberror.CodeParse, "ReadCSV", "SourceCatalog")
	}
	for i, name := range csvHeader {
		if header[i] != name {
			return nil, dberror.New(dberror.CategoryUser, dberror.CodeParse,
				"unexpected CSV header").WithDetail("column %d: want %q, got %q", i, name, header[i])
		}
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, dberror.Wrap(err, dberror.CodeParse, "ReadCSV", "SourceCatalog")
		}

		rec, err := parseRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	logging.Debug("parsed source catalog", "records", len(records))
	return records, nil
}

// ReadCSVFile opens and parses the catalog at path.
func ReadCSVFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dberror.Wrap(err, dberror.CodeParse, "ReadCSVFile", "SourceCatalog")
	}
	defer f.Close()

	return ReadCSV(f)
}

func parseRow(row []string) (Record, error) {
	id, err := strconv.ParseInt(row[0], 10, 32)
	if err != nil {
		return Record{}, dberror.New(dberror.CategoryUser, dberror.CodeParse,
			"invalid wine id").WithDetail("%q", row[0])
	}

	year, err := strconv.ParseInt(row[2], 10, 32)
	if err != nil {
		return Record{}, dberror.New(dberror.CategoryUser, dberror.CodeParse,
			"invalid harvest year").WithDetail("%q", row[2])
	}

	typ, err := ParseType(row[3])
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		WineID:      int32(id),
		Label:       row[1],
		HarvestYear: int32(year),
		Type:        typ,
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}
