package mirror

import "slMirror/internal/domain"

type classKey struct {
	recipient string
	eventType string
}

var classifications = map[classKey]domain.Classification{
	{domain.DomainStreamlabs, "donation"}:                 domain.ClassificationDonation,
	{domain.DomainStreamlabs, "loyalty_store_redemption"}: domain.ClassificationLoyaltyRedemption,
	{domain.DomainStreamlabs, "merch"}:                    domain.ClassificationMerch,
	{domain.DomainStreamlabs, "prime_sub_gift"}:           domain.ClassificationPrimeSubGift,

	{domain.DomainTwitchAccount, "bits"}:         domain.ClassificationBits,
	{domain.DomainTwitchAccount, "follow"}:       domain.ClassificationFollow,
	{domain.DomainTwitchAccount, "host"}:         domain.ClassificationHost,
	{domain.DomainTwitchAccount, "raid"}:         domain.ClassificationRaid,
	{domain.DomainTwitchAccount, "subscription"}: domain.ClassificationSubscription,
	{domain.DomainTwitchAccount, "resub"}:        domain.ClassificationResub,
}

// Classify mapea (dominio, tipo) a una clasificación conocida o a Unrecognized.
func Classify(recipientDomain, eventType string) domain.Classification {
	if c, ok := classifications[classKey{recipientDomain, eventType}]; ok {
		return c
	}
	return domain.ClassificationUnrecognized
}
