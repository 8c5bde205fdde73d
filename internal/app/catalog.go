package app

import (
	"fmt"

	"quickfire-quiz-service/internal/config"
	"quickfire-quiz-service/internal/domain"
)

// BuildCatalog converts the flattened YAML catalog into typed powerup
// definitions. Unknown effect kinds are an error so a config typo fails
// at startup rather than at activation time.
func BuildCatalog(cfg config.Powerups) (map[string]domain.PowerupDefinition, error) {
	catalog := make(map[string]domain.PowerupDefinition, len(cfg.Catalog))
	for _, entry := range cfg.Catalog {
		effect, err := effectFromEntry(entry)
		if err != nil {
			return nil, err
		}
		catalog[entry.ID] = domain.PowerupDefinition{
			ID:            entry.ID,
			Name:          entry.Name,
			Cost:          entry.Cost,
			Effect:        effect,
			MaxPerSession: entry.MaxPerSession,
			Cooldown:      config.TTLDuration(entry.Cooldown, 0),
		}
	}
	return catalog, nil
}

func effectFromEntry(entry config.CatalogEntry) (domain.Effect, error) {
	switch entry.Effect {
	case "freeze_time":
		return domain.FreezeTime{Duration: config.TTLDuration(entry.Duration, 0)}, nil
	case "add_time":
		return domain.AddTime{Seconds: entry.Seconds}, nil
	case "multiplier":
		scope := domain.MultiplierScope(entry.Scope)
		if scope != domain.MultiplierAllRemaining && scope != domain.MultiplierNextQuestion {
			return nil, fmt.Errorf("powerup %s: unknown multiplier scope %q", entry.ID, entry.Scope)
		}
		return domain.Multiplier{Value: entry.Value, Scope: scope}, nil
	case "block_penalty":
		return domain.BlockPenalty{Count: entry.Count}, nil
	case "remove_options":
		return domain.RemoveOptions{Count: entry.Count}, nil
	case "skip_question":
		return domain.SkipQuestion{}, nil
	default:
		return nil, fmt.Errorf("powerup %s: unknown effect %q", entry.ID, entry.Effect)
	}
}
