package domain

type Classification string

const (
	ClassificationDonation          Classification = "donation"
	ClassificationLoyaltyRedemption Classification = "loyalty_redemption"
	ClassificationMerch             Classification = "merch"
	ClassificationPrimeSubGift      Classification = "prime_sub_gift"
	ClassificationBits              Classification = "bits"
	ClassificationFollow            Classification = "follow"
	ClassificationHost              Classification = "host"
	ClassificationRaid              Classification = "raid"
	ClassificationSubscription      Classification = "subscription"
	ClassificationResub             Classification = "resub"
	ClassificationUnrecognized      Classification = "unrecognized"
)

// ClassifiedMessage es lo que reciben los sinks informativos por cada entrada
// que pasó los filtros y tiene una clasificación conocida.
type ClassifiedMessage struct {
	EventID         string
	RecipientDomain string
	Type            string
	Classification  Classification
	Entry           MessageEntry
}
