package pack

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
)

// Store - файловое хранилище пака вопросов. Реализует repository.PackStore.
// Активный пак держится в памяти; замена пака атомарно переписывает файл
// (запись во временный файл + rename).
type Store struct {
	path string

	mu   sync.RWMutex
	pack *entity.Pack
}

// NewStore загружает пак из файла. Если файл отсутствует, создается
// пустой пак по умолчанию и сохраняется на диск.
func NewStore(path string) (*Store, error) {
	store := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("не удалось прочитать файл пака '%s': %w", path, err)
		}
		log.Printf("[PackStore] Файл пака '%s' не найден, создаю пак по умолчанию", path)
		store.pack = defaultPack()
		if err := store.persist(store.pack); err != nil {
			return nil, err
		}
		return store, nil
	}

	var p entity.Pack
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("не удалось разобрать пак '%s': %w", path, err)
	}
	store.pack = &p

	log.Printf("[PackStore] Пак '%s' загружен: %d вопросов", p.Meta.Title, len(p.Questions))
	return store, nil
}

// GetQuestionByID возвращает вопрос по ID или ErrUnknownQuestion
func (s *Store) GetQuestionByID(id uint) (*entity.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if q := s.pack.FindQuestion(id); q != nil {
		return q, nil
	}
	return nil, apperrors.ErrUnknownQuestion
}

// Meta возвращает метаданные активного пака
func (s *Store) Meta() entity.PackMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pack.Meta
}

// Current возвращает активный пак целиком
func (s *Store) Current() *entity.Pack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pack
}

// Replace атомарно заменяет активный пак и сохраняет его на диск
func (s *Store) Replace(pack *entity.Pack) error {
	if pack == nil {
		return apperrors.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(pack); err != nil {
		return err
	}
	s.pack = pack

	log.Printf("[PackStore] Пак заменен: '%s', %d вопросов", pack.Meta.Title, len(pack.Questions))
	return nil
}

// persist сохраняет пак на диск через временный файл и rename
func (s *Store) persist(pack *entity.Pack) error {
	data, err := json.MarshalIndent(pack, "", "  ")
	if err != nil {
		return fmt.Errorf("не удалось сериализовать пак: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("не удалось создать каталог данных: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("не удалось записать временный файл пака: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("не удалось заменить файл пака: %w", err)
	}
	return nil
}

// defaultPack возвращает минимальный пак для первого запуска
func defaultPack() *entity.Pack {
	return &entity.Pack{
		Meta: entity.PackMeta{
			Title:         "Quiz Night",
			SupervisorPIN: "1234",
			ValidatorPIN:  "5678",
			Bonus:         false,
		},
		Questions: []entity.Question{},
	}
}
