package browser

// Stealth scripts injected before any navigation. Each patch targets a
// specific headless-Chromium tell.
const stealthScript = `
(() => {
  Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
  Object.defineProperty(navigator, 'plugins', {
    get: () => [1, 2, 3, 4, 5],
  });
  Object.defineProperty(navigator, 'languages', {
    get: () => ['en-US', 'en'],
  });
  const origQuery = window.navigator.permissions.query.bind(window.navigator.permissions);
  window.navigator.permissions.query = (parameters) =>
    parameters.name === 'notifications'
      ? Promise.resolve({ state: Notification.permission })
      : origQuery(parameters);
  window.chrome = window.chrome || {};
  window.chrome.runtime = window.chrome.runtime || {};
})();
`

// Overlay selectors removed on state entry. Matching nodes are deleted,
// never clicked.
const dismissOverlaysScript = `
(() => {
  const selectors = [
    '#onetrust-consent-sdk', '.onetrust-pc-dark-filter',
    '[id*="cookie-banner"]', '[class*="cookie-banner"]', '[class*="cookie-consent"]',
    '#cookieConsent', '.cc-window', '.cky-consent-container',
    '[class*="gdpr"]', '[id*="gdpr-banner"]',
    '.intercom-lightweight-app', '#intercom-container',
    '[class*="livechat"]', '#tidio-chat', '#crisp-chatbox', '.drift-frame-controller',
    'iframe[title*="chat"]', 'iframe[src*="tawk.to"]', 'iframe[src*="jivosite"]',
    '.goog-te-banner-frame', '#google_translate_element',
    '[class*="newsletter-popup"]', '[class*="modal-backdrop"].show',
  ];
  let removed = 0;
  for (const sel of selectors) {
    document.querySelectorAll(sel).forEach((el) => { el.remove(); removed++; });
  }
  return removed;
})()
`

const pageTextScript = `document.body ? document.body.innerText : ''`

// Visible form validation errors, collected for the LLM context.
const visibleErrorsScript = `
(() => {
  const out = [];
  const sels = ['.error', '.invalid-feedback', '.field-error', '.form-error',
                '[class*="error-message"]', '[role="alert"]', '.help-block', '.text-danger'];
  for (const sel of sels) {
    document.querySelectorAll(sel).forEach((el) => {
      const t = (el.innerText || '').trim();
      if (t && t.length < 200 && el.offsetParent !== null) out.push(t);
    });
  }
  return [...new Set(out)].slice(0, 10);
})()
`

// Current values of visible form fields, keyed by the best available
// identifier.
const formFieldValuesScript = `
(() => {
  const out = {};
  document.querySelectorAll('input, select, textarea').forEach((el) => {
    if (el.type === 'hidden' || el.offsetParent === null) return;
    const key = el.name || el.id || el.placeholder || el.type;
    if (!key) return;
    out[key] = el.type === 'checkbox' ? String(el.checked) : (el.value || '');
  });
  return out;
})()
`

// Opportunistic wallet-address extraction. Readonly inputs and
// clipboard attributes carry deposit addresses far more often than
// free text, so those are collected first.
const extractWalletsScript = `
(() => {
  const out = [];
  document.querySelectorAll('input[readonly], input[disabled]').forEach((el) => {
    if (el.value && el.value.length >= 20) out.push(el.value.trim());
  });
  document.querySelectorAll('[data-clipboard-text]').forEach((el) => {
    const v = el.getAttribute('data-clipboard-text');
    if (v && v.length >= 20) out.push(v.trim());
  });
  document.querySelectorAll('code, .address, [class*="wallet"], [class*="address"]').forEach((el) => {
    const t = (el.innerText || '').trim();
    if (t && t.length >= 20 && t.length <= 120 && !t.includes(' ')) out.push(t);
  });
  return [...new Set(out)];
})()
`

// Coin tabs on deposit pages (USDT / BTC / ETH switchers).
const coinTabsScript = `
(() => {
  const out = [];
  const re = /^(USDT|USDC|BTC|ETH|TRX|TRC20|ERC20|BEP20|SOL|LTC|DOGE)([ \-/].*)?$/i;
  document.querySelectorAll('li, .tab, [role="tab"], button, a, .coin-item').forEach((el, idx) => {
    const t = (el.innerText || '').trim();
    if (t && t.length <= 24 && re.test(t) && el.offsetParent !== null) {
      out.push({ index: idx, text: t });
    }
  });
  return out.slice(0, 12);
})()
`

// DOM scan routines, one per inspectable state. Each returns plain data
// matching dominspect.ScanData.
const scanFindRegisterScript = `
(() => {
  const res = {
    has_registration_form: false,
    register_links: [],
    url_is_register_page: /register|signup|sign-up|join|create|account\/new/i.test(location.pathname),
    modal_with_form_inputs: false,
  };
  const pw = document.querySelector('input[type="password"]');
  const email = document.querySelector('input[type="email"], input[name*="email" i], input[placeholder*="email" i]');
  if (pw && email && pw.offsetParent !== null) res.has_registration_form = true;

  const re = /register|sign ?up|join|create account|get started/i;
  document.querySelectorAll('a, button').forEach((el) => {
    const t = (el.innerText || '').trim();
    if (t && t.length <= 40 && re.test(t) && el.offsetParent !== null) {
      let sel = '';
      if (el.id) sel = '#' + CSS.escape(el.id);
      else if (el.className && typeof el.className === 'string') {
        const c = el.className.trim().split(/\s+/)[0];
        if (c) sel = el.tagName.toLowerCase() + '.' + CSS.escape(c);
      }
      res.register_links.push({ selector: sel, text: t });
    }
  });
  res.register_links = res.register_links.slice(0, 5);

  const modal = document.querySelector('.modal.show, [role="dialog"], .ant-modal');
  if (modal && modal.querySelector('input')) res.modal_with_form_inputs = true;
  return res;
})()
`

const scanNavigateDepositScript = `
(() => {
  const res = {
    deposit_links: [],
    url_is_deposit_page: /deposit|recharge|fund|invest|top-?up|wallet\/add/i.test(location.pathname),
    deposit_css_element: '',
  };
  const re = /deposit|recharge|top ?up|add funds|fund/i;
  document.querySelectorAll('a, button, [role="menuitem"]').forEach((el) => {
    const t = (el.innerText || '').trim();
    if (t && t.length <= 40 && re.test(t) && el.offsetParent !== null) {
      let sel = '';
      if (el.id) sel = '#' + CSS.escape(el.id);
      else if (el.getAttribute('href')) sel = el.tagName.toLowerCase() + '[href="' + el.getAttribute('href') + '"]';
      res.deposit_links.push({ selector: sel, text: t });
    }
  });
  res.deposit_links = res.deposit_links.slice(0, 5);

  const css = document.querySelector('[class*="deposit" i], [id*="deposit" i]');
  if (css && css.offsetParent !== null) {
    res.deposit_css_element = css.id ? '#' + CSS.escape(css.id) : '[class*="deposit" i]';
  }
  return res;
})()
`

const scanCheckEmailScript = `
(() => {
  const res = {
    email_verify_text_found: false,
    email_verify_snippet: '',
    dashboard_text_found: false,
    dashboard_snippet: '',
    url_is_verify_page: /verify|confirm|activate|email-verification/i.test(location.pathname),
  };
  const body = (document.body ? document.body.innerText : '').slice(0, 20000);
  const verifyRe = /(verify your email|check your (inbox|email)|confirmation (link|email)|activate your account)[^\n]{0,80}/i;
  const dashRe = /(my assets|total balance|dashboard|portfolio|account overview|available balance)[^\n]{0,40}/i;
  const vm = body.match(verifyRe);
  if (vm) { res.email_verify_text_found = true; res.email_verify_snippet = vm[0].trim(); }
  const dm = body.match(dashRe);
  if (dm) { res.dashboard_text_found = true; res.dashboard_snippet = dm[0].trim(); }
  return res;
})()
`
