// Package property holds the property selection state: the loaded list of
// properties and the one currently active. Downstream registries never read
// it implicitly; they receive a Scope built from it.
package property

import (
	"context"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/beesaferoot/kost-manager/internal/apperrors"
	"github.com/beesaferoot/kost-manager/internal/models"
)

// Scope is the active property context passed to every registry and engine
// call.
type Scope struct {
	PropertyID string
}

// Validate fails with NoPropertySelectedError when the scope is empty.
func (s Scope) Validate() error {
	if s.PropertyID == "" {
		return apperrors.ErrNoPropertySelected
	}
	return nil
}

// Source is the store subset the selection needs.
type Source interface {
	ListProperties(ctx context.Context) ([]models.Property, error)
	InsertProperty(ctx context.Context, p *models.Property) error
}

// Selection is safe for concurrent use.
type Selection struct {
	source   Source
	validate *validator.Validate

	mu          sync.RWMutex
	properties  []models.Property
	selectedID  string
	subscribers map[int]func(models.Property, bool)
	nextSub     int
}

func NewSelection(source Source) *Selection {
	return &Selection{
		source:      source,
		validate:    validator.New(),
		subscribers: make(map[int]func(models.Property, bool)),
	}
}

// Load refreshes the property list. The first property is selected when
// nothing is selected yet; a selection whose property vanished is cleared.
func (s *Selection) Load(ctx context.Context) error {
	list, err := s.source.ListProperties(ctx)
	if err != nil {
		return &apperrors.RemoteError{Op: "list properties", Err: err}
	}

	s.mu.Lock()
	s.properties = list
	prev := s.selectedID
	if s.selectedID != "" && indexOf(list, s.selectedID) < 0 {
		s.selectedID = ""
	}
	if s.selectedID == "" && len(list) > 0 {
		s.selectedID = list[0].ID
	}
	changed := prev != s.selectedID
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return nil
}

// Select makes id the active property. It must be among the loaded ones.
func (s *Selection) Select(id string) error {
	s.mu.Lock()
	if indexOf(s.properties, id) < 0 {
		s.mu.Unlock()
		return &apperrors.NotFoundError{Entity: apperrors.EntityProperty, ID: id}
	}
	changed := s.selectedID != id
	s.selectedID = id
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return nil
}

// Clear drops the active property.
func (s *Selection) Clear() {
	s.mu.Lock()
	changed := s.selectedID != ""
	s.selectedID = ""
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Create inserts a property and appends it to the loaded list. The first
// property ever created becomes the active one.
func (s *Selection) Create(ctx context.Context, name, address string) (models.Property, error) {
	p := models.Property{
		ID:      uuid.NewString(),
		Name:    strings.TrimSpace(name),
		Address: strings.TrimSpace(address),
	}
	if err := s.validate.StructCtx(ctx, p); err != nil {
		return models.Property{}, apperrors.FromValidator(apperrors.EntityProperty, err)
	}
	if err := s.source.InsertProperty(ctx, &p); err != nil {
		return models.Property{}, &apperrors.RemoteError{Op: "insert property", Err: err}
	}

	s.mu.Lock()
	s.properties = append(s.properties, p)
	selectNew := s.selectedID == ""
	if selectNew {
		s.selectedID = p.ID
	}
	s.mu.Unlock()

	if selectNew {
		s.notify()
	}
	return p, nil
}

func (s *Selection) Properties() []models.Property {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Property(nil), s.properties...)
}

func (s *Selection) Current() (models.Property, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.properties, s.selectedID); i >= 0 {
		return s.properties[i], true
	}
	return models.Property{}, false
}

func (s *Selection) CurrentPropertyID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID, s.selectedID != ""
}

// Scope returns the active scope or NoPropertySelectedError.
func (s *Selection) Scope() (Scope, error) {
	id, ok := s.CurrentPropertyID()
	if !ok {
		return Scope{}, apperrors.ErrNoPropertySelected
	}
	return Scope{PropertyID: id}, nil
}

// Subscribe registers fn for selection changes. fn receives the new property
// and false when the selection was cleared. The returned func unsubscribes.
func (s *Selection) Subscribe(fn func(models.Property, bool)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Selection) notify() {
	current, ok := s.Current()
	s.mu.RLock()
	subs := make([]func(models.Property, bool), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(current, ok)
	}
}

func indexOf(list []models.Property, id string) int {
	if id == "" {
		return -1
	}
	for i, p := range list {
		if p.ID == id {
			return i
		}
	}
	return -1
}
