package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go-pedidos/internal/notify"
	"go-pedidos/internal/storage"
)

type store interface {
	List(ctx context.Context) ([]Order, error)
	Update(ctx context.Context, o Order) (Order, error)
	Delete(ctx context.Context, id int64) error
}

type Service struct {
	repo     store
	uploader storage.Uploader
	notifier notify.Notifier
	now      func() time.Time
}

func NewService(repo store, uploader storage.Uploader, notifier notify.Notifier) *Service {
	if uploader == nil {
		uploader = storage.Disabled{}
	}
	if notifier == nil {
		notifier = notify.Log{}
	}
	return &Service{repo: repo, uploader: uploader, notifier: notifier, now: time.Now}
}

func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.repo.List(ctx)
}

// Save validates o and overwrites the stored order with the same id.
func (s *Service) Save(ctx context.Context, o Order) (Order, error) {
	if err := o.Validate(); err != nil {
		return Order{}, err
	}
	saved, err := s.repo.Update(ctx, o)
	if err != nil {
		s.notifier.Notify(notify.Errorf("Erro ao atualizar: %v", err))
		return Order{}, err
	}
	s.notifier.Notify(notify.Success("Pedido atualizado com sucesso!"))
	return saved, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.notifier.Notify(notify.Errorf("Erro ao excluir: %v", err))
		return err
	}
	s.notifier.Notify(notify.Success("Pedido excluído com sucesso!"))
	return nil
}

// Export writes every order to a spreadsheet in object storage and returns
// its URL.
func (s *Service) Export(ctx context.Context) (string, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		s.notifier.Notify(notify.Errorf("Erro ao exportar: %v", err))
		return "", err
	}
	data, err := Workbook(list)
	if err != nil {
		s.notifier.Notify(notify.Errorf("Erro ao exportar: %v", err))
		return "", err
	}

	key := fmt.Sprintf("exports/pedidos_%s_%s.xlsx", s.now().Format("20060102_150405"), uuid.NewString())
	url, err := s.uploader.Upload(ctx, key, data, xlsxContentType)
	if err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			s.notifier.Notify(notify.Errorf("Exportação indisponível: armazenamento não configurado"))
		} else {
			s.notifier.Notify(notify.Errorf("Erro ao exportar: %v", err))
		}
		return "", err
	}
	s.notifier.Notify(notify.Success(fmt.Sprintf("%d pedidos exportados", len(list))))
	return url, nil
}
