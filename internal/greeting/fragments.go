package greeting

// Language selects the fragment table used for composition.
type Language string

const (
	Russian Language = "ru"
	English Language = "en"
)

// KeywordRule maps any of its case-insensitive substrings to a fragment.
type KeywordRule struct {
	Substrings []string
	Fragment   string
}

// FragmentTable is the static, read-only vocabulary for one language.
// Position and Topic rules are evaluated in declaration order; first match wins.
type FragmentTable struct {
	Language         Language
	Categories       map[EventCategory]string
	Tones            map[Tone]string
	Segments         map[ClientSegment]string
	CompanyFormat    string
	PreferencePrefix string
	Positions        []KeywordRule
	Topics           []KeywordRule
	TopicFallback    string
}

var englishTable = FragmentTable{
	Language: English,
	Categories: map[EventCategory]string{
		NewYear:             "Christmas tree, snowflakes, fireworks, champagne, holiday atmosphere",
		Birthday:            "birthday cake, candles, balloons, gifts, party atmosphere",
		WomensDay:           "spring flowers, tulips, mimosa, spring atmosphere, feminine elegance",
		ProfessionalHoliday: "business success, achievements, professional atmosphere, corporate style",
		CompanyAnniversary:  "celebration, achievements, milestone, corporate celebration",
		FoundingDay:         "corporate style, business success, team, growth",
	},
	Tones: map[Tone]string{
		ToneFormal:   "professional corporate design, elegant, sophisticated, business-like, corporate blue, gold, white",
		ToneFriendly: "warm friendly design, welcoming, approachable, modern design, warm colors, friendly tones",
		ToneCreative: "creative artistic design, original, innovative, artistic, vibrant colors, bold accents",
	},
	Segments: map[ClientSegment]string{
		SegmentVIP:      "premium quality, exclusive design, luxury elements, ultra high quality",
		SegmentNew:      "welcoming, friendly, establishing connection, high quality",
		SegmentLoyal:    "appreciation, long-term partnership, value, personalized, high quality",
		SegmentStandard: "professional, friendly, high quality",
	},
	CompanyFormat:    "corporate style of %s",
	PreferencePrefix: "client preferences: ",
	Positions: []KeywordRule{
		{Substrings: []string{"директор", "руководитель", "director", "head of", "chief", "ceo"}, Fragment: "executive level, leadership"},
		{Substrings: []string{"финанс", "бухгалт", "financ", "accountant", "cfo"}, Fragment: "financial sector, business"},
	},
	Topics: []KeywordRule{
		{Substrings: []string{"кредит", "займ", "credit", "loan"}, Fragment: "financial services context"},
		{Substrings: []string{"расчет", "расчёт", "обслуживание", "счет", "счёт", "account", "settlement", "service"}, Fragment: "banking services context"},
	},
	TopicFallback: "long-term client relationship context",
}

var russianTable = FragmentTable{
	Language: Russian,
	Categories: map[EventCategory]string{
		NewYear:             "новогодняя елка, снежинки, фейерверки, шампанское, праздничная атмосфера",
		Birthday:            "праздничный торт, свечи, воздушные шары, подарки, праздничная атмосфера",
		WomensDay:           "весенние цветы, тюльпаны, мимоза, весенняя атмосфера, женская элегантность",
		ProfessionalHoliday: "бизнес успех, достижения, профессиональная атмосфера, корпоративный стиль",
		CompanyAnniversary:  "празднование, достижения, важная веха, корпоративное торжество",
		FoundingDay:         "корпоративный стиль, бизнес успех, команда, рост",
	},
	Tones: map[Tone]string{
		ToneFormal:   "профессиональный корпоративный дизайн, элегантный, утонченный, деловой, корпоративный синий, золотой, белый",
		ToneFriendly: "теплый дружеский дизайн, приветливый, доступный, современный дизайн, теплые цвета, дружелюбные тона",
		ToneCreative: "креативный художественный дизайн, оригинальный, инновационный, художественный, яркие цвета, смелые акценты",
	},
	Segments: map[ClientSegment]string{
		SegmentVIP:      "премиум качество, эксклюзивный дизайн, элементы роскоши, ультра высокое качество",
		SegmentNew:      "приветливый, дружелюбный, установление связи, высокое качество",
		SegmentLoyal:    "благодарность, долгосрочное партнерство, ценность, персонализированный, высокое качество",
		SegmentStandard: "профессиональный, дружелюбный, высокое качество",
	},
	CompanyFormat:    "корпоративный стиль компании %s",
	PreferencePrefix: "предпочтения клиента: ",
	Positions: []KeywordRule{
		{Substrings: []string{"директор", "руководитель", "director", "head of", "chief", "ceo"}, Fragment: "уровень руководителя, лидерство"},
		{Substrings: []string{"финанс", "бухгалт", "financ", "accountant", "cfo"}, Fragment: "финансовый сектор, бизнес"},
	},
	Topics: []KeywordRule{
		{Substrings: []string{"кредит", "займ", "credit", "loan"}, Fragment: "контекст финансовых услуг"},
		{Substrings: []string{"расчет", "расчёт", "обслуживание", "счет", "счёт", "account", "settlement", "service"}, Fragment: "контекст банковского обслуживания"},
	},
	TopicFallback: "контекст долгосрочного сотрудничества",
}

// Table returns the fragment table for lang. Unknown languages fall back to English.
func Table(lang Language) FragmentTable {
	if lang == Russian {
		return russianTable
	}
	return englishTable
}

// CategoryName is the human-readable Russian name used in text prompts.
func CategoryName(c EventCategory) string {
	switch c {
	case NewYear:
		return "Новый год"
	case Birthday:
		return "день рождения"
	case WomensDay:
		return "Международный женский день (8 Марта)"
	case ProfessionalHoliday:
		return "профессиональный праздник"
	case CompanyAnniversary:
		return "юбилей компании"
	case FoundingDay:
		return "день основания компании"
	default:
		return string(c)
	}
}

// SegmentDescription is the Russian client description used in text prompts.
func SegmentDescription(s ClientSegment) string {
	switch s {
	case SegmentVIP:
		return "VIP-клиент, требует премиум подхода"
	case SegmentNew:
		return "новый клиент, важно произвести хорошее впечатление"
	case SegmentLoyal:
		return "лояльный клиент, долгосрочное партнерство"
	default:
		return "стандартный клиент"
	}
}

// ToneDescription is the Russian tone instruction used in text prompts.
func ToneDescription(t Tone) string {
	switch t {
	case ToneFriendly:
		return "теплый, дружеский тон"
	case ToneCreative:
		return "креативный, оригинальный подход"
	default:
		return "официальный, уважительный тон"
	}
}
