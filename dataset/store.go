package dataset

import (
	"io"
	"sync"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/pkg/log"
)

// previewRows is the number of rows returned in Info.Preview.
const previewRows = 5

// Info is the metadata reported for the active dataset.
type Info struct {
	Name    string            `json:"filename"`
	Rows    int               `json:"rows"`
	Columns []string          `json:"columns"`
	Kinds   map[string]string `json:"dtypes"`
	Missing map[string]int    `json:"missing"`
	Preview []map[string]any  `json:"preview"`
}

// Store holds the single active dataset. It is created once and passed to
// the components that read from it; writers are serialized.
type Store struct {
	mu     sync.RWMutex
	name   string
	frame  *Frame
	info   Info
	logger log.Logger
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{logger: log.GetLoggerWithName("dataset.store")}
}

// Load parses a CSV document and makes it the active dataset.
func (s *Store) Load(name string, r io.Reader) (Info, error) {
	f, err := ReadCSV(r)
	if err != nil {
		return Info{}, err
	}
	return s.Set(name, f), nil
}

// Set replaces the active dataset wholesale.
func (s *Store) Set(name string, f *Frame) Info {
	info := describe(name, f)

	s.mu.Lock()
	s.name, s.frame, s.info = name, f, info
	s.mu.Unlock()

	s.logger.Info("dataset loaded",
		log.DatasetKey, name,
		log.SamplesKey, f.NumRows(),
		log.ColumnsKey, f.NumCols(),
	)
	return info
}

// Current returns the active frame and its metadata.
func (s *Store) Current() (*Frame, Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frame == nil {
		return nil, Info{}, errors.NewStateError("dataset.Current", "dataset", "", errors.ErrNoDataset)
	}
	return s.frame, s.info, nil
}

// Info returns the metadata of the active dataset.
func (s *Store) Info() (Info, error) {
	_, info, err := s.Current()
	return info, err
}

// Columns returns the column names of the active dataset.
func (s *Store) Columns() ([]string, error) {
	f, _, err := s.Current()
	if err != nil {
		return nil, err
	}
	return f.Names(), nil
}

// ColumnKind returns the kind of a column of the active dataset.
func (s *Store) ColumnKind(name string) (Kind, error) {
	f, _, err := s.Current()
	if err != nil {
		return 0, err
	}
	c, ok := f.Column(name)
	if !ok {
		return 0, errors.NewColumnError("dataset.ColumnKind", "column not found", name, f.Names())
	}
	return c.Kind, nil
}

// Replace applies a destructive edit to the active dataset and stores the
// result. The edit runs under the write lock so concurrent edits serialize.
func (s *Store) Replace(op string, edit func(*Frame) (*Frame, error)) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return Info{}, errors.NewStateError(op, "dataset", "", errors.ErrNoDataset)
	}
	next, err := edit(s.frame)
	if err != nil {
		return Info{}, err
	}
	before := s.frame.NumRows()
	s.frame = next
	s.info = describe(s.name, next)

	s.logger.Info("dataset replaced",
		log.OperationKey, op,
		log.DatasetKey, s.name,
		"rows_before", before,
		log.SamplesKey, next.NumRows(),
		log.ColumnsKey, next.NumCols(),
	)
	return s.info, nil
}

// Clear removes the active dataset.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name, s.frame, s.info = "", nil, Info{}
}

func describe(name string, f *Frame) Info {
	info := Info{
		Name:    name,
		Rows:    f.NumRows(),
		Columns: f.Names(),
		Kinds:   make(map[string]string, f.NumCols()),
		Missing: make(map[string]int, f.NumCols()),
		Preview: f.Head(previewRows).Records(),
	}
	for _, c := range f.Columns() {
		info.Kinds[c.Name] = c.Kind.String()
		info.Missing[c.Name] = c.MissingCount()
	}
	return info
}

// Analyze runs exploratory analysis on the active dataset.
func (s *Store) Analyze() (*Analysis, error) {
	f, _, err := s.Current()
	if err != nil {
		return nil, err
	}
	return Analyze(f), nil
}
