package extract

// Vocabulary holds the keyword phrases the extractor anchors on. The OCR
// captures mix French and English, so both are carried by default; callers
// can supply their own set via config instead of editing match logic.
//
// Phrases are matched against accent-folded, lowercased text, so entries
// must be given without diacritics.
type Vocabulary struct {
	DeliveryKeywords  []string `yaml:"delivery_keywords" mapstructure:"delivery_keywords"`
	ProfileHeadings   []string `yaml:"profile_headings" mapstructure:"profile_headings"`
	LocatedPhrases    []string `yaml:"located_phrases" mapstructure:"located_phrases"`
	CertContext       []string `yaml:"cert_context" mapstructure:"cert_context"`
	ShopQualifiers    []string `yaml:"shop_qualifiers" mapstructure:"shop_qualifiers"`
	ManufacturingKw   []string `yaml:"manufacturing_keywords" mapstructure:"manufacturing_keywords"`
	TradingKw         []string `yaml:"trading_keywords" mapstructure:"trading_keywords"`
	ResponseKeywords  []string `yaml:"response_keywords" mapstructure:"response_keywords"`
	PersonalizationKw []string `yaml:"personalization_keywords" mapstructure:"personalization_keywords"`
	GuaranteeKw       []string `yaml:"guarantee_keywords" mapstructure:"guarantee_keywords"`
	VerifiedKw        []string `yaml:"verified_keywords" mapstructure:"verified_keywords"`
}

// DefaultVocabulary returns the built-in French/English phrase set.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		DeliveryKeywords: []string{
			"taux de livraison",
			"livraison a temps",
			"livre a temps",
			"on-time delivery",
			"delivery rate",
			"on time delivery",
		},
		ProfileHeadings: []string{
			"company profile",
			"profil de l'entreprise",
			"profil entreprise",
			"apercu de l'entreprise",
			"company overview",
		},
		LocatedPhrases: []string{
			"located in",
			"situated in",
			"situe en",
			"situe a",
			"base en",
			"base a",
		},
		CertContext: []string{
			"certification",
			"certifications",
			"certificat",
			"certificate",
			"certifie",
			"certified",
			"conformite",
			"conformity",
		},
		ShopQualifiers: []string{
			"boutique",
			"shop",
			"store",
			"magasin",
		},
		ManufacturingKw: []string{
			"manufacturing",
			"manufacturer",
			"fabricant",
			"factory",
			"usine",
			"industrial",
			"industriel",
		},
		TradingKw: []string{
			"trading company",
			"trading co",
			"societe de negoce",
			"import-export",
		},
		ResponseKeywords: []string{
			"temps de reponse",
			"response time",
			"repond en",
			"responds within",
			"avg. response",
		},
		PersonalizationKw: []string{
			"personnalisation",
			"personnalise",
			"customization",
			"customized",
			"custom logo",
			"logo personnalise",
			"oem",
			"odm",
		},
		GuaranteeKw: []string{
			"trade assurance",
			"assurance commerciale",
			"garantie commerciale",
			"buyer protection",
			"protection acheteur",
		},
		VerifiedKw: []string{
			"verified",
			"verifie",
			"verifiee",
		},
	}
}
