package config

// Application constants for the TillPulse system
const (
	// Application Info
	AppName   = "TillPulse"
	AppVendor = "TillPulse"

	// EnvPrefix is the envconfig prefix: TILLPULSE_SERVER_PORT and friends
	EnvPrefix = "TILLPULSE"
)

// ConfigFileLocations are probed in order for the YAML config file
var ConfigFileLocations = []string{
	"tillpulse.yaml",
	"config.yaml",
	"configs/config.yaml",
}

// Default header labels per field. Matching is case-insensitive and ignores
// surrounding whitespace; the lists mix the English and French labels seen
// in real register exports, with and without accents.
var (
	DefaultTimestampColumns = []string{"dt_iso", "datetime", "timestamp", "date_heure", "horodatage", "date et heure"}
	DefaultDateColumns      = []string{"date", "jour", "date_vente"}
	DefaultTimeColumns      = []string{"time", "heure", "heure_vente"}
	DefaultAmountColumns    = []string{"amount", "montant", "montant_ttc", "total", "total_ttc", "prix", "net amount"}
	DefaultPaymentColumns   = []string{"payment", "paiement", "reglement", "règlement", "mode_paiement", "mode de paiement", "tender"}
	DefaultEmployeeColumns  = []string{"employee", "employe", "employé", "employe(e)", "employé(e)", "vendeur", "caissier", "staff", "operateur", "opérateur"}
	DefaultServiceColumns   = []string{"service", "item", "article", "produit", "prestation", "libelle", "libellé", "designation", "désignation"}
	DefaultTicketColumns    = []string{"ticket", "ticket_id", "num_ticket", "receipt", "recu", "reçu", "reference", "référence"}
)

// Default parse layouts. Combined timestamps are tried first; when an export
// splits date and time across two columns the date and time layouts combine.
// Day-first orders only: these exports come from French tills and 03/04 is
// the 3rd of April, not the 4th of March.
var (
	DefaultTimestampLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"02/01/2006 15:04:05",
		"02/01/2006 15:04",
	}
	DefaultDateLayouts = []string{
		"2006-01-02",
		"02/01/2006",
		"02-01-2006",
		"02.01.2006",
	}
	DefaultTimeLayouts = []string{
		"15:04:05",
		"15:04",
		"15h04",
	}
)
