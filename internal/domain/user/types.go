package user

type Provider string

const (
	ProviderPassword  Provider = "password"
	ProviderFederated Provider = "federated"
)

func (p Provider) String() string {
	return string(p)
}

func (p Provider) IsValid() bool {
	switch p {
	case ProviderPassword, ProviderFederated:
		return true
	default:
		return false
	}
}
