package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/Duhfx/LembrAI/internal/domain"
	"github.com/Duhfx/LembrAI/internal/storage"
)

// Unlimited marks a cap that never refuses.
const Unlimited = -1

// PlanLimits are the caps for one plan tier.
type PlanLimits struct {
	MaxRemindersPerMonth int
	MaxActiveReminders   int
	MaxAdvanceMinutes    int
}

var planLimits = map[domain.PlanType]PlanLimits{
	domain.PlanFree: {
		MaxRemindersPerMonth: 10,
		MaxActiveReminders:   5,
		MaxAdvanceMinutes:    60,
	},
	domain.PlanPaid: {
		MaxRemindersPerMonth: Unlimited,
		MaxActiveReminders:   Unlimited,
		MaxAdvanceMinutes:    Unlimited,
	},
}

// Decision is the limiter's answer: allowed or not, with a user-facing reason
// when refused.
type Decision struct {
	Allowed bool
	Reason  string
}

// PlanService answers quota questions. It only reads and decides; callers
// must re-ask at confirmation time because state elapses between turns.
type PlanService struct {
	storage *storage.Storage
	loc     *time.Location
	now     func() time.Time
}

func NewPlanService(s *storage.Storage, loc *time.Location) *PlanService {
	if loc == nil {
		loc = time.Local
	}
	return &PlanService{storage: s, loc: loc, now: time.Now}
}

func (s *PlanService) limitsFor(user *domain.User) PlanLimits {
	if limits, ok := planLimits[user.PlanType]; ok {
		return limits
	}
	return planLimits[domain.PlanFree]
}

// CanCreate checks the active-pending cap and the calendar-month cap.
func (s *PlanService) CanCreate(userID string) (Decision, error) {
	user, err := s.storage.GetUserByID(userID)
	if err != nil {
		return Decision{}, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return Decision{Reason: "Usuário não encontrado"}, nil
	}

	limits := s.limitsFor(user)

	if limits.MaxActiveReminders != Unlimited {
		active, err := s.storage.CountPendingByUser(userID)
		if err != nil {
			return Decision{}, fmt.Errorf("count active: %w", err)
		}
		if active >= limits.MaxActiveReminders {
			return Decision{
				Reason: fmt.Sprintf(
					"Você atingiu o limite de %d lembretes ativos no plano %s. Aguarde o envio dos lembretes existentes ou faça upgrade para o plano PAID.",
					limits.MaxActiveReminders, user.PlanType),
			}, nil
		}
	}

	if limits.MaxRemindersPerMonth != Unlimited {
		monthly, err := s.storage.CountCreatedSince(userID, s.startOfMonth())
		if err != nil {
			return Decision{}, fmt.Errorf("count monthly: %w", err)
		}
		if monthly >= limits.MaxRemindersPerMonth {
			return Decision{
				Reason: fmt.Sprintf(
					"Você atingiu o limite de %d lembretes por mês no plano %s. Aguarde o próximo mês ou faça upgrade para o plano PAID.",
					limits.MaxRemindersPerMonth, user.PlanType),
			}, nil
		}
	}

	return Decision{Allowed: true}, nil
}

// ValidateLeadTime checks the per-plan lead-time ceiling.
func (s *PlanService) ValidateLeadTime(userID string, minutes int) (Decision, error) {
	user, err := s.storage.GetUserByID(userID)
	if err != nil {
		return Decision{}, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return Decision{Reason: "Usuário não encontrado"}, nil
	}

	limits := s.limitsFor(user)
	if limits.MaxAdvanceMinutes != Unlimited && minutes > limits.MaxAdvanceMinutes {
		return Decision{
			Reason: fmt.Sprintf(
				"O plano %s permite avisos com no máximo %d minutos de antecedência. Faça upgrade para o plano PAID para avisos ilimitados.",
				user.PlanType, limits.MaxAdvanceMinutes),
		}, nil
	}
	return Decision{Allowed: true}, nil
}

// Usage is the snapshot behind the /plano report and the extractor context.
type Usage struct {
	PlanType         domain.PlanType
	ActiveReminders  int
	MonthlyReminders int
	Limits           PlanLimits
}

func (s *PlanService) Usage(userID string) (*Usage, error) {
	user, err := s.storage.GetUserByID(userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	active, err := s.storage.CountPendingByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("count active: %w", err)
	}
	monthly, err := s.storage.CountCreatedSince(userID, s.startOfMonth())
	if err != nil {
		return nil, fmt.Errorf("count monthly: %w", err)
	}

	return &Usage{
		PlanType:         user.PlanType,
		ActiveReminders:  active,
		MonthlyReminders: monthly,
		Limits:           s.limitsFor(user),
	}, nil
}

// FormatUsage renders the /plano report.
func (s *PlanService) FormatUsage(userID string) (string, error) {
	usage, err := s.Usage(userID)
	if err != nil {
		return "", err
	}

	planEmoji := "🆓"
	if usage.PlanType == domain.PlanPaid {
		planEmoji = "💎"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s *Seu Plano: %s*\n\n", planEmoji, usage.PlanType)

	if usage.Limits.MaxRemindersPerMonth == Unlimited {
		fmt.Fprintf(&sb, "📊 Lembretes este mês: %d (ilimitado)\n", usage.MonthlyReminders)
	} else {
		fmt.Fprintf(&sb, "📊 Lembretes este mês: %d/%d\n", usage.MonthlyReminders, usage.Limits.MaxRemindersPerMonth)
	}

	if usage.Limits.MaxActiveReminders == Unlimited {
		fmt.Fprintf(&sb, "⏳ Lembretes ativos: %d (ilimitado)\n", usage.ActiveReminders)
	} else {
		fmt.Fprintf(&sb, "⏳ Lembretes ativos: %d/%d\n", usage.ActiveReminders, usage.Limits.MaxActiveReminders)
	}

	if usage.Limits.MaxAdvanceMinutes == Unlimited {
		sb.WriteString("⏰ Tempo de antecedência: ilimitado\n")
	} else {
		fmt.Fprintf(&sb, "⏰ Tempo de antecedência: até %d minutos\n", usage.Limits.MaxAdvanceMinutes)
	}

	if usage.Limits.MaxRemindersPerMonth != Unlimited {
		percentUsed := float64(usage.MonthlyReminders) / float64(usage.Limits.MaxRemindersPerMonth) * 100
		if percentUsed >= 80 {
			fmt.Fprintf(&sb, "\n⚠️ Você já usou %.0f%% do seu limite mensal!", percentUsed)
		}
	}

	if usage.PlanType == domain.PlanFree {
		sb.WriteString("\n\n💎 *Faça upgrade para PAID e tenha:*\n")
		sb.WriteString("• Lembretes ilimitados\n")
		sb.WriteString("• Sem limite de tempo de antecedência\n")
		sb.WriteString("• Suporte prioritário")
	}

	return sb.String(), nil
}

func (s *PlanService) startOfMonth() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
}
