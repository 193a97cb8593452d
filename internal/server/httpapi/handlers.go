package httpapi

import (
	"fmt"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/gofiber/fiber/v2"
)

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", common.ErrValidation, err)
	}
	return nil
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := s.svc.Auth.Login(c.UserContext(), req.UserName, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(loginResponse{
		Token:     res.Token,
		ExpiresAt: res.Session.ExpiresAt,
		Account:   toAccountResponse(res.Account),
	})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return common.ErrorUnauthorized
	}
	if err := s.svc.Auth.Logout(c.UserContext(), token); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleRedeem(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	account, err := s.svc.Invites.Redeem(c.UserContext(), c.Params("code"), req.UserName, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toAccountResponse(account))
}

func (s *Server) handleListInvites(c *fiber.Ctx) error {
	list, err := s.svc.Invites.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]inviteResponse, 0, len(list))
	for i := range list {
		out = append(out, toInviteResponse(&list[i]))
	}
	return c.JSON(out)
}

func (s *Server) handleCreateInvite(c *fiber.Ctx) error {
	var req createInviteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	invite, err := s.svc.Invites.Create(c.UserContext(), req.spec(), currentAccount(c).UserName)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toInviteResponse(invite))
}

func (s *Server) handleGetInvite(c *fiber.Ctx) error {
	invite, err := s.svc.Invites.Get(c.UserContext(), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(toInviteResponse(invite))
}

func (s *Server) handleDeleteInvite(c *fiber.Ctx) error {
	if err := s.svc.Invites.Delete(c.UserContext(), c.Params("code")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleCleanupInvites(c *fiber.Ctx) error {
	n, err := s.svc.Invites.Cleanup(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(cleanupResponse{Deleted: n})
}

func (s *Server) handleListAccounts(c *fiber.Ctx) error {
	list, err := s.svc.Accounts.ListSynchronized(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]accountResponse, 0, len(list))
	for i := range list {
		out = append(out, toAccountResponse(&list[i]))
	}
	return c.JSON(out)
}

func (s *Server) handleDisableAccount(c *fiber.Ctx) error {
	account, err := s.svc.Accounts.Disable(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toAccountResponse(account))
}

func (s *Server) handleEnableAccount(c *fiber.Ctx) error {
	account, err := s.svc.Accounts.Enable(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toAccountResponse(account))
}

func (s *Server) handleSetExpiry(c *fiber.Ctx) error {
	var req expiryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := s.svc.Accounts.SetExpiry(c.UserContext(), c.Params("id"), req.ExpiresAt); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleSetAdmin(c *fiber.Ctx) error {
	var req adminRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.IsAdmin == nil {
		return fmt.Errorf("%w: is_admin is required", common.ErrValidation)
	}
	account, err := s.svc.Accounts.SetAdmin(c.UserContext(), c.Params("id"), *req.IsAdmin)
	if err != nil {
		return err
	}
	return c.JSON(toAccountResponse(account))
}

func (s *Server) handleDeleteAccount(c *fiber.Ctx) error {
	if err := s.svc.Accounts.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleSweep(c *fiber.Ctx) error {
	r, err := s.svc.Sweeper.RunOnce(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(sweepResponse{
		Disabled:       r.Disabled,
		LocalOnly:      r.LocalOnly,
		RemoteDisabled: r.RemoteDisabled,
		RemoteFailed:   r.RemoteFailed,
		Lagging:        r.Lagging,
		SessionsPurged: r.SessionsPurged,
	})
}

func (s *Server) handleListProfiles(c *fiber.Ctx) error {
	list, err := s.svc.Profiles.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]profileResponse, 0, len(list))
	for i := range list {
		out = append(out, toProfileResponse(&list[i]))
	}
	return c.JSON(out)
}

func (s *Server) handleCaptureProfile(c *fiber.Ctx) error {
	var req captureProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	profile, err := s.svc.Profiles.Capture(c.UserContext(), req.Name, req.RemoteAccountID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toProfileResponse(profile))
}

func (s *Server) handleDeleteProfile(c *fiber.Ctx) error {
	if err := s.svc.Profiles.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
