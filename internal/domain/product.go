package domain

import (
	"bytes"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ChannelKind различает варианты публикации товара в канале продаж.
type ChannelKind int

const (
	// ChannelPublished: флаг "опубликован/не опубликован".
	ChannelPublished ChannelKind = iota + 1
	// ChannelExternal: идентификатор (или ссылка) внешнего листинга маркетплейса.
	ChannelExternal
)

// ChannelListing: размеченное объединение Published(bool) | ExternalListing(id).
// Нулевое значение невалидно.
type ChannelListing struct {
	kind       ChannelKind
	published  bool
	externalID string
}

// Published создаёт вариант с флагом публикации.
func Published(published bool) ChannelListing {
	return ChannelListing{kind: ChannelPublished, published: published}
}

// ExternalListing создаёт вариант с внешним идентификатором листинга.
func ExternalListing(id string) ChannelListing {
	return ChannelListing{kind: ChannelExternal, externalID: id}
}

// Kind возвращает вариант объединения.
func (l ChannelListing) Kind() ChannelKind { return l.kind }

// PublishedFlag возвращает флаг и true, если вариант: Published.
func (l ChannelListing) PublishedFlag() (bool, bool) {
	return l.published, l.kind == ChannelPublished
}

// ExternalID возвращает идентификатор и true, если вариант: ExternalListing.
func (l ChannelListing) ExternalID() (string, bool) {
	return l.externalID, l.kind == ChannelExternal
}

// Listed сообщает, виден ли товар в канале: Published(true) или внешний листинг.
func (l ChannelListing) Listed() bool {
	switch l.kind {
	case ChannelPublished:
		return l.published
	case ChannelExternal:
		return l.externalID != ""
	default:
		return false
	}
}

func (l ChannelListing) valid() bool {
	switch l.kind {
	case ChannelPublished:
		return true
	case ChannelExternal:
		return strings.TrimSpace(l.externalID) != ""
	default:
		return false
	}
}

// MarshalJSON сохраняет исходный формат: bool либо строка.
func (l ChannelListing) MarshalJSON() ([]byte, error) {
	switch l.kind {
	case ChannelPublished:
		return json.Marshal(l.published)
	case ChannelExternal:
		return json.Marshal(l.externalID)
	default:
		return []byte("null"), nil
	}
}

// parseChannelListing разбирает одно значение канала.
func parseChannelListing(raw json.RawMessage) (ChannelListing, bool) {
	raw = bytes.TrimSpace(raw)
	var flag bool
	if err := json.Unmarshal(raw, &flag); err == nil && !bytes.Equal(raw, []byte("null")) {
		return Published(flag), true
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil && !bytes.Equal(raw, []byte("null")) {
		listing := ExternalListing(strings.TrimSpace(id))
		return listing, listing.valid()
	}
	return ChannelListing{}, false
}

// Channels: карта публикаций по каналам ("site", "ml", "shopee", ...).
type Channels map[string]ChannelListing

// UnmarshalJSON валидирует каждое значение: bool или непустая строка.
func (c *Channels) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = nil
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewValidationError(map[string]string{"channels": "must be an object"})
	}

	fields := map[string]string{}
	out := make(Channels, len(raw))
	for key, value := range raw {
		listing, ok := parseChannelListing(value)
		if !ok {
			fields["channels."+key] = "must be a boolean or a non-empty external listing id"
			continue
		}
		out[key] = listing
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}

	*c = out
	return nil
}

// Validate проверяет ключи и варианты всех каналов.
func (c Channels) Validate() map[string]string {
	fields := map[string]string{}
	for key, listing := range c {
		if strings.TrimSpace(key) == "" {
			fields["channels"] = "channel identifier must not be empty"
			continue
		}
		if !listing.valid() {
			fields["channels."+key] = "must be a boolean or a non-empty external listing id"
		}
	}
	return fields
}

// Keys возвращает идентификаторы каналов в отсортированном порядке.
func (c Channels) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone возвращает независимую копию карты.
func (c Channels) Clone() Channels {
	if c == nil {
		return nil
	}
	out := make(Channels, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Product: товар каталога.
type Product struct {
	ID             string
	Name           string
	Description    string
	Ingredients    string
	Benefits       string
	Tags           []string
	PriceMinor     int64
	Channels       Channels
	ImageURL       string
	Category       string
	IsSubscription bool
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProductFields: данные для создания товара.
type ProductFields struct {
	Name           string
	Description    string
	Ingredients    string
	Benefits       string
	Tags           []string
	PriceMinor     int64
	Channels       Channels
	ImageURL       string
	Category       string
	IsSubscription bool
}

// ProductPatch: частичное обновление товара. nil: поле не меняется.
type ProductPatch struct {
	Name           *string
	Description    *string
	Ingredients    *string
	Benefits       *string
	Tags           *[]string
	PriceMinor     *int64
	Channels       *Channels
	ImageURL       *string
	Category       *string
	IsSubscription *bool
	Active         *bool
}

// ProductFilter задаёт параметры выборки каталога.
type ProductFilter struct {
	Channel    string
	Category   string
	ActiveOnly bool
	Search     string
}

// Matches проверяет товар на соответствие фильтру.
func (f ProductFilter) Matches(p Product) bool {
	if f.ActiveOnly && !p.Active {
		return false
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.Channel != "" {
		listing, ok := p.Channels[f.Channel]
		if !ok || !listing.Listed() {
			return false
		}
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	return true
}

// NewProduct строит активный товар из полей.
func NewProduct(id string, fields ProductFields, now time.Time) Product {
	return Product{
		ID:             id,
		Name:           strings.TrimSpace(fields.Name),
		Description:    fields.Description,
		Ingredients:    fields.Ingredients,
		Benefits:       fields.Benefits,
		Tags:           append([]string(nil), fields.Tags...),
		PriceMinor:     fields.PriceMinor,
		Channels:       fields.Channels.Clone(),
		ImageURL:       strings.TrimSpace(fields.ImageURL),
		Category:       strings.TrimSpace(fields.Category),
		IsSubscription: fields.IsSubscription,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Apply применяет патч к товару.
func (p ProductPatch) Apply(product *Product) {
	if p.Name != nil {
		product.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Ingredients != nil {
		product.Ingredients = *p.Ingredients
	}
	if p.Benefits != nil {
		product.Benefits = *p.Benefits
	}
	if p.Tags != nil {
		product.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.PriceMinor != nil {
		product.PriceMinor = *p.PriceMinor
	}
	if p.Channels != nil {
		product.Channels = p.Channels.Clone()
	}
	if p.ImageURL != nil {
		product.ImageURL = strings.TrimSpace(*p.ImageURL)
	}
	if p.Category != nil {
		product.Category = strings.TrimSpace(*p.Category)
	}
	if p.IsSubscription != nil {
		product.IsSubscription = *p.IsSubscription
	}
	if p.Active != nil {
		product.Active = *p.Active
	}
}

// Validate проверяет инварианты товара и возвращает ValidationError с деталями.
func (p *Product) Validate() error {
	fields := map[string]string{}

	if p.Name == "" {
		fields["name"] = "is required"
	}
	if p.Category == "" {
		fields["category"] = "is required"
	}
	if p.PriceMinor < 0 {
		fields["price"] = "must be non-negative"
	}
	if p.ImageURL != "" {
		if u, err := url.Parse(p.ImageURL); err != nil || u.Scheme == "" || u.Host == "" {
			fields["image_url"] = "must be an absolute URL"
		}
	}
	for k, v := range p.Channels.Validate() {
		fields[k] = v
	}

	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}
