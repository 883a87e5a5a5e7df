package classifier

import "encoding/json"

// Result is the verdict for one candidate. Company is set iff IsAd.
type Result struct {
	IsAd    bool
	Company string
}

// NotAd is the verdict for ordinary content and for every degraded path.
func NotAd() Result { return Result{} }

// Ad is a match against company's references.
func Ad(company string) Result { return Result{IsAd: true, Company: company} }

type resultJSON struct {
	IsAd    bool    `json:"isAd"`
	Company *string `json:"company"`
}

// MarshalJSON emits {"isAd": bool, "company": string|null}.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{IsAd: r.IsAd}
	if r.IsAd {
		out.Company = &r.Company
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the MarshalJSON form.
func (r *Result) UnmarshalJSON(b []byte) error {
	var in resultJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = Result{IsAd: in.IsAd}
	if in.IsAd && in.Company != nil {
		r.Company = *in.Company
	}
	return nil
}

func (r Result) String() string {
	if !r.IsAd {
		return "not-ad"
	}
	return "ad:" + r.Company
}
