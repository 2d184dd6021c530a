package petstore

import (
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Pet statuses
const (
	StatusAvailable = "available"
	StatusPending   = "pending"
	StatusSold      = "sold"
)

// Category groups pets
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Tag labels a pet
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Pet is the fixture's only entity
type Pet struct {
	ID        int64     `json:"id"`
	Category  *Category `json:"category,omitempty"`
	Name      string    `json:"name"`
	PhotoURLs []string  `json:"photoUrls"`
	Tags      []Tag     `json:"tags,omitempty"`
	Status    string    `json:"status,omitempty"`
}

// SeedPetID is always present in a fresh store
const SeedPetID int64 = 123

const firstAssignedID int64 = 1000

// Store is a bounded in-memory pet store. Least recently used pets are evicted once
// capacity is reached.
type Store struct {
	mu     sync.Mutex
	pets   *lru.Cache[int64, Pet]
	nextID int64
}

// NewStore creates a store seeded with the pets the conformance battery relies on
func NewStore(capacity int) (*Store, error) {
	cache, err := lru.New[int64, Pet](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create pet store: %w", err)
	}

	s := &Store{pets: cache, nextID: firstAssignedID}
	for _, pet := range seedPets() {
		s.pets.Add(pet.ID, pet)
	}
	return s, nil
}

func seedPets() []Pet {
	return []Pet{
		{
			ID:        SeedPetID,
			Category:  &Category{ID: 1, Name: "Dogs"},
			Name:      "doggie",
			PhotoURLs: []string{"https://example.com/doggie.jpg"},
			Tags:      []Tag{{ID: 1, Name: "friendly"}},
			Status:    StatusAvailable,
		},
		{
			ID:        124,
			Category:  &Category{ID: 2, Name: "Cats"},
			Name:      "kitty",
			PhotoURLs: []string{"https://example.com/kitty.jpg"},
			Status:    StatusPending,
		},
		{
			ID:        125,
			Category:  &Category{ID: 3, Name: "Fish"},
			Name:      "goldie",
			PhotoURLs: []string{},
			Status:    StatusSold,
		},
	}
}

// Get returns the pet with the given ID
func (s *Store) Get(id int64) (Pet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pets.Get(id)
}

// FindByStatus returns pets in any of the given statuses ordered by ID
func (s *Store) FindByStatus(statuses []string) []Pet {
	wanted := make(map[string]bool, len(statuses))
	for _, status := range statuses {
		wanted[status] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pets := []Pet{}
	for _, id := range s.pets.Keys() {
		pet, ok := s.pets.Peek(id)
		if ok && wanted[pet.Status] {
			pets = append(pets, pet)
		}
	}
	sort.Slice(pets, func(i, j int) bool { return pets[i].ID < pets[j].ID })
	return pets
}

// Add stores a pet, assigning an ID when the caller did not supply one
func (s *Store) Add(pet Pet) Pet {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pet.ID == 0 {
		pet.ID = s.nextID
		s.nextID++
	}
	if pet.PhotoURLs == nil {
		pet.PhotoURLs = []string{}
	}
	s.pets.Add(pet.ID, pet)
	return pet
}

// Len returns the number of stored pets
func (s *Store) Len() int {
	return s.pets.Len()
}
