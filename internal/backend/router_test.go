package backend

import "testing"

func TestRouteProviderFamily(t *testing.T) {
	ops := []Operation{OpConnect, OpList, OpUpload, OpDownload, OpKeepAlive, OpCheck}
	for _, op := range ops {
		if got := Route(KindProvider, op); got != FamilyProvider {
			t.Errorf("Route(KindProvider, %s) = %s, want provider", op, got)
		}
	}
}

func TestRouteLegacyFamily(t *testing.T) {
	for _, kind := range []Kind{KindLegacy, KindSecureLegacy} {
		if got := Route(kind, OpList); got != FamilyLegacy {
			t.Errorf("Route(%s, list) = %s, want legacy", kind, got)
		}
	}
}

func TestRouteUnknownKindDefaultsToLegacy(t *testing.T) {
	if got := Route(Kind("bogus"), OpConnect); got != FamilyLegacy {
		t.Errorf("unknown kind routed to %s, want legacy", got)
	}
	if got := Route(Kind(""), OpConnect); got != FamilyLegacy {
		t.Errorf("empty kind routed to %s, want legacy", got)
	}
}

func TestConnectionOriented(t *testing.T) {
	cases := []struct {
		kind Kind
		want bool
	}{
		{KindLegacy, true},
		{KindSecureLegacy, true},
		{KindProvider, false},
		{Kind("bogus"), false},
	}
	for _, c := range cases {
		if got := c.kind.ConnectionOriented(); got != c.want {
			t.Errorf("%s.ConnectionOriented() = %v, want %v", c.kind, got, c.want)
		}
	}
}
